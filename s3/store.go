package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockbucket"
	"github.com/hupe1980/blockbucket/internal/hexkey"
)

// eraseConcurrency bounds concurrent deletes during Erase.
const eraseConcurrency = 8

// Store implements blockbucket.BlockStore for S3 and S3-compatible storage.
//
// Configuration is fixed at construction and never mutated; every operation
// is independently invocable with no cross-operation ordering guarantee.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	sse      types.ServerSideEncryption
	hook     MetadataHook
	logger   *slog.Logger
}

var _ blockbucket.BlockStore = (*Store)(nil)

// New builds the S3 client from the environment plus the given options and
// returns a store for the bucket. Credentials resolve, in order of
// preference, from an explicit option (static keys, session triple, or a
// pluggable provider) or the environment default chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.creds != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(o.creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		if o.pathStyle {
			so.UsePathStyle = true
		}
	})

	return newStore(client, bucket, o)
}

// NewFromClient returns a store over a caller-supplied client.
func NewFromClient(client Client, bucket string, optFns ...Option) (*Store, error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	return newStore(client, bucket, o)
}

func applyOptions(optFns []Option) (*options, error) {
	o := &options{}
	for _, fn := range optFns {
		fn(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func newStore(client Client, bucket string, o *options) (*Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket name must not be empty")
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   hexkey.Normalize(o.prefix),
		sse:      o.sse,
		hook:     o.hook,
		logger:   logger,
	}, nil
}

func (s *Store) key(id mh.Multihash) string {
	return hexkey.Encode(s.prefix, id)
}

// Stat returns metadata for a stored block. A backend not-found maps to
// blockbucket.ErrNotFound; every other backend error propagates unchanged.
func (s *Store) Stat(ctx context.Context, id mh.Multihash) (blockbucket.Stat, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return blockbucket.Stat{}, blockbucket.ErrNotFound
		}
		return blockbucket.Stat{}, err
	}
	return statFromHead(id, head), nil
}

// Get returns a lazy handle to a stored block. The metadata fetch happens
// here; content transfers only when the handle is opened.
func (s *Store) Get(ctx context.Context, id mh.Multihash) (blockbucket.Block, error) {
	stat, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.lazyBlock(stat), nil
}

// Put stores a block unless its digest is already present, in which case the
// existing block is returned without a new upload.
func (s *Store) Put(ctx context.Context, blk blockbucket.Block) (blockbucket.Block, error) {
	existing, err := s.Stat(ctx, blk.ID())
	if err == nil {
		return s.lazyBlock(existing), nil
	}
	if !errors.Is(err, blockbucket.ErrNotFound) {
		return nil, err
	}

	meta := UploadMetadata{UserMetadata: map[string]string{}}
	if s.hook != nil {
		s.hook(&meta)
	}

	body, err := blk.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(blk.ID())),
		Body:          body,
		ContentLength: aws.Int64(blk.Size()),
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if len(meta.UserMetadata) > 0 {
		input.Metadata = meta.UserMetadata
	}
	if s.sse != "" {
		input.ServerSideEncryption = s.sse
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return nil, err
	}

	// The upload response carries no usable timestamp and its size is not
	// authoritative; the locally-known values win.
	stat := blockbucket.Stat{
		ID:       blk.ID(),
		Size:     blk.Size(),
		StoredAt: time.Now().UTC(),
	}
	if out != nil && out.ETag != nil {
		stat.Metadata = map[string]string{"ETag": *out.ETag}
	}

	return s.lazyBlock(stat), nil
}

// Delete removes a block. A missing block reports false and issues no
// backend delete.
func (s *Store) Delete(ctx context.Context, id mh.Multihash) (bool, error) {
	if _, err := s.Stat(ctx, id); err != nil {
		if errors.Is(err, blockbucket.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// List streams stored blocks in ascending key order. Breaking out of the
// range loop stops further backend pagination.
func (s *Store) List(ctx context.Context, optFns ...func(*blockbucket.ListOptions)) iter.Seq2[blockbucket.Block, error] {
	var opts blockbucket.ListOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(yield func(blockbucket.Block, error) bool) {
		for stat, err := range s.listStats(ctx, opts) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(s.lazyBlock(stat), nil) {
				return
			}
		}
	}
}

// Erase deletes every object under the bucket+prefix, block-shaped or not.
// The first deletion failure cancels the remainder and propagates;
// partially-erased state is possible and not rolled back.
func (s *Store) Erase(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(eraseConcurrency)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    aws.String(key),
				})
				return err
			})
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	return g.Wait()
}

func (s *Store) lazyBlock(stat blockbucket.Stat) blockbucket.Block {
	key := s.key(stat.ID)
	return blockbucket.NewBlock(stat, func(ctx context.Context, rng *blockbucket.Range) (io.ReadCloser, error) {
		return openContent(ctx, s.client, s.bucket, key, rng)
	})
}

// isNotFound reports whether a backend error means the object is missing.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
