package s3

import (
	"context"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/blockbucket"
	"github.com/hupe1980/blockbucket/internal/hexkey"
)

// maxKeysPerPage caps a single list call, matching the S3 page ceiling.
const maxKeysPerPage = 1000

// listStats drives repeated ListObjectsV2 calls into one logical sequence
// of stat records in ascending key order.
//
// The sequence is one-pass and non-restartable. Pagination stops when the
// backend reports not-truncated, the limit budget is exhausted, the `before`
// cutoff is reached, or the consumer stops ranging. Entries whose keys do
// not parse as block keys are dropped as foreign bucket content.
func (s *Store) listStats(ctx context.Context, opts blockbucket.ListOptions) iter.Seq2[blockbucket.Stat, error] {
	return func(yield func(blockbucket.Stat, error) bool) {
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
		}
		if s.prefix != "" {
			input.Prefix = aws.String(s.prefix)
		}
		if opts.After != "" {
			input.StartAfter = aws.String(s.prefix + opts.After)
		}

		remaining := opts.Limit

		for {
			if opts.Limit > 0 {
				input.MaxKeys = aws.Int32(int32(min(remaining, maxKeysPerPage)))
			}

			page, err := s.client.ListObjectsV2(ctx, input)
			if err != nil {
				yield(blockbucket.Stat{}, err)
				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)

				sub, ok := hexkey.SubKey(s.prefix, key)
				if !ok {
					s.logger.Debug("skipping object outside prefix", "key", key)
					continue
				}
				// Hard upper cutoff: the first subkey at or past the
				// bound ends the whole sequence, pagination included.
				if opts.Before != "" && sub >= opts.Before {
					return
				}

				stat, err := statFromObject(s.prefix, obj)
				if err != nil {
					s.logger.Debug("skipping non-block key", "key", key, "error", err)
					continue
				}

				if !yield(stat, nil) {
					return
				}
				if opts.Limit > 0 {
					remaining--
					if remaining <= 0 {
						return
					}
				}
			}

			if !aws.ToBool(page.IsTruncated) {
				return
			}
			input.ContinuationToken = page.NextContinuationToken
			input.StartAfter = nil
		}
	}
}
