package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	mh "github.com/multiformats/go-multihash"

	"github.com/hupe1980/blockbucket"
	"github.com/hupe1980/blockbucket/internal/hexkey"
)

// UploadMetadata is the mutable upload metadata handed to a MetadataHook
// before a put is sent.
type UploadMetadata struct {
	ContentType  string
	UserMetadata map[string]string
}

// MetadataHook mutates upload metadata in place before each put.
type MetadataHook func(m *UploadMetadata)

type options struct {
	prefix string
	sse    encrypt.ServerSide
	hook   MetadataHook
	logger *slog.Logger
}

// Option configures store construction.
type Option func(*options)

// WithPrefix keys all objects under the given path prefix, normalized the
// same way as the s3 package.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithSSE applies server-side encryption to uploaded blocks,
// e.g. encrypt.NewSSE().
func WithSSE(sse encrypt.ServerSide) Option {
	return func(o *options) {
		o.sse = sse
	}
}

// WithMetadataHook installs a hook invoked with the upload metadata before
// each put.
func WithMetadataHook(hook MetadataHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithLogger sets the logger used for listing diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Store implements blockbucket.BlockStore for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	sse    encrypt.ServerSide
	hook   MetadataHook
	logger *slog.Logger
}

var _ blockbucket.BlockStore = (*Store)(nil)

// NewStore creates a block store over an existing MinIO client.
func NewStore(client *minio.Client, bucket string, optFns ...Option) (*Store, error) {
	o := &options{}
	for _, fn := range optFns {
		fn(o)
	}

	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket name must not be empty")
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		client: client,
		bucket: bucket,
		prefix: hexkey.Normalize(o.prefix),
		sse:    o.sse,
		hook:   o.hook,
		logger: logger,
	}, nil
}

func (s *Store) key(id mh.Multihash) string {
	return hexkey.Encode(s.prefix, id)
}

// Stat returns metadata for a stored block.
func (s *Store) Stat(ctx context.Context, id mh.Multihash) (blockbucket.Stat, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(id), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return blockbucket.Stat{}, blockbucket.ErrNotFound
		}
		return blockbucket.Stat{}, err
	}

	stat := blockbucket.Stat{
		ID:       id,
		Size:     info.Size,
		StoredAt: info.LastModified,
	}
	if stat.StoredAt.IsZero() {
		stat.StoredAt = time.Now().UTC()
	}

	md := make(map[string]string, len(info.UserMetadata)+2)
	for k, v := range info.UserMetadata {
		md[k] = v
	}
	if info.ContentType != "" {
		md["Content-Type"] = info.ContentType
	}
	if info.ETag != "" {
		md["ETag"] = info.ETag
	}
	if len(md) > 0 {
		stat.Metadata = md
	}
	return stat, nil
}

// Get returns a lazy handle to a stored block.
func (s *Store) Get(ctx context.Context, id mh.Multihash) (blockbucket.Block, error) {
	stat, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.lazyBlock(stat), nil
}

// Put stores a block unless its digest is already present.
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

	putOpts := minio.PutObjectOptions{
		ContentType:          meta.ContentType,
		ServerSideEncryption: s.sse,
	}
	if len(meta.UserMetadata) > 0 {
		putOpts.UserMetadata = meta.UserMetadata
	}

	info, err := s.client.PutObject(ctx, s.bucket, s.key(blk.ID()), body, blk.Size(), putOpts)
	if err != nil {
		return nil, err
	}

	stat := blockbucket.Stat{
		ID:       blk.ID(),
		Size:     blk.Size(),
		StoredAt: time.Now().UTC(),
	}
	if info.ETag != "" {
		stat.Metadata = map[string]string{"ETag": info.ETag}
	}
	return s.lazyBlock(stat), nil
}

// Delete removes a block, reporting false without a backend call when the
// block does not exist.
func (s *Store) Delete(ctx context.Context, id mh.Multihash) (bool, error) {
	if _, err := s.Stat(ctx, id); err != nil {
		if errors.Is(err, blockbucket.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, s.key(id), minio.RemoveObjectOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

// List streams stored blocks in ascending key order.
func (s *Store) List(ctx context.Context, optFns ...func(*blockbucket.ListOptions)) iter.Seq2[blockbucket.Block, error] {
	var opts blockbucket.ListOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(yield func(blockbucket.Block, error) bool) {
		// Cancel the producer goroutine when the consumer stops early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		listOpts := minio.ListObjectsOptions{
			Prefix:    s.prefix,
			Recursive: true,
		}
		if opts.After != "" {
			listOpts.StartAfter = s.prefix + opts.After
		}
		if opts.Limit > 0 {
			// Keep page size at the budget so a small limit does not
			// pull full pages off the backend.
			listOpts.MaxKeys = min(opts.Limit, 1000)
		}

		yielded := 0
		for obj := range s.client.ListObjects(ctx, s.bucket, listOpts) {
			if obj.Err != nil {
				yield(nil, obj.Err)
				return
			}

			sub, ok := hexkey.SubKey(s.prefix, obj.Key)
			if !ok {
				s.logger.Debug("skipping object outside prefix", "key", obj.Key)
				continue
			}
			if opts.Before != "" && sub >= opts.Before {
				return
			}

			id, err := hexkey.Decode(s.prefix, obj.Key)
			if err != nil {
				s.logger.Debug("skipping non-block key", "key", obj.Key, "error", err)
				continue
			}

			stat := blockbucket.Stat{ID: id, Size: obj.Size, StoredAt: obj.LastModified}
			if !yield(s.lazyBlock(stat), nil) {
				return
			}
			yielded++
			if opts.Limit > 0 && yielded >= opts.Limit {
				return
			}
		}
	}
}

// Erase deletes every object under the bucket+prefix, block-shaped or not.
func (s *Store) Erase(ctx context.Context) error {
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lazyBlock(stat blockbucket.Stat) blockbucket.Block {
	key := hexkey.Encode(s.prefix, stat.ID)
	return blockbucket.NewBlock(stat, func(ctx context.Context, rng *blockbucket.Range) (io.ReadCloser, error) {
		getOpts := minio.GetObjectOptions{}
		if rng != nil {
			if rng.Start < 0 || rng.End <= rng.Start {
				return nil, fmt.Errorf("invalid byte range [%d,%d)", rng.Start, rng.End)
			}
			if err := getOpts.SetRange(rng.Start, rng.End-1); err != nil {
				return nil, err
			}
		}

		obj, err := s.client.GetObject(ctx, s.bucket, key, getOpts)
		if err != nil {
			return nil, err
		}
		return &onceCloser{rc: obj}, nil
	})
}

// onceCloser makes Close idempotent: a second close is a no-op reporting nil.
type onceCloser struct {
	rc io.ReadCloser

	mu     sync.Mutex
	closed bool
}

func (c *onceCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *onceCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.rc.Close()
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
