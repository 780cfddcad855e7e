package s3

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	mh "github.com/multiformats/go-multihash"

	"github.com/hupe1980/blockbucket"
	"github.com/hupe1980/blockbucket/internal/hexkey"
)

// statFromObject translates a listing-summary entry into a Stat. The error
// carries the key-codec rejection for entries that are not block keys.
func statFromObject(prefix string, obj types.Object) (blockbucket.Stat, error) {
	id, err := hexkey.Decode(prefix, aws.ToString(obj.Key))
	if err != nil {
		return blockbucket.Stat{}, err
	}

	stat := blockbucket.Stat{
		ID:   id,
		Size: aws.ToInt64(obj.Size),
	}
	if obj.LastModified != nil {
		stat.StoredAt = *obj.LastModified
	}
	return stat, nil
}

// statFromHead translates a full metadata fetch into a Stat for a known id.
// A missing last-modified is substituted with the current time. Origin
// metadata carries the backend headers minus the transport-standard ones
// (content length, last modified, accept ranges).
func statFromHead(id mh.Multihash, head *s3.HeadObjectOutput) blockbucket.Stat {
	stat := blockbucket.Stat{
		ID:       id,
		Size:     aws.ToInt64(head.ContentLength),
		StoredAt: time.Now().UTC(),
	}
	if head.LastModified != nil {
		stat.StoredAt = *head.LastModified
	}

	md := make(map[string]string, len(head.Metadata)+4)
	for k, v := range head.Metadata {
		md[k] = v
	}
	if head.ContentType != nil {
		md["Content-Type"] = *head.ContentType
	}
	if head.ETag != nil {
		md["ETag"] = *head.ETag
	}
	if head.ServerSideEncryption != "" {
		md["x-amz-server-side-encryption"] = string(head.ServerSideEncryption)
	}
	if head.VersionId != nil {
		md["x-amz-version-id"] = *head.VersionId
	}
	if len(md) > 0 {
		stat.Metadata = md
	}
	return stat
}
