package blockbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	mh "github.com/multiformats/go-multihash"
)

// Stat is the metadata record for a stored block.
//
// A Stat is immutable after creation: translators build it once from a
// listing entry or a metadata fetch and callers must not modify it.
type Stat struct {
	// ID is the block's content digest.
	ID mh.Multihash

	// Size is the stored content length in bytes.
	Size int64

	// StoredAt is when the backend recorded the object. Translators that
	// cannot learn it from the backend substitute the current time.
	StoredAt time.Time

	// Metadata carries backend-specific origin headers, minus the
	// transport-standard ones (content length, last modified, accept
	// ranges). Nil when the source was a listing summary.
	Metadata map[string]string
}

// Range selects the byte interval [Start, End) of a block's content.
type Range struct {
	Start int64
	End   int64
}

// Opener opens a new content stream for a block. A nil rng requests the
// whole object. Every call opens a fresh stream; nothing is cached.
type Opener func(ctx context.Context, rng *Range) (io.ReadCloser, error)

// Block is a lazy handle to a stored block: metadata now, content on demand.
//
// The caller owns any stream returned by Open/OpenRange and must close it.
// Closing a stream before end-of-stream is always safe, as is closing it
// more than once.
type Block interface {
	// ID returns the block's content digest.
	ID() mh.Multihash
	// Size returns the content length in bytes.
	Size() int64
	// StoredAt returns when the block was stored.
	StoredAt() time.Time
	// Open opens the whole content.
	Open(ctx context.Context) (io.ReadCloser, error)
	// OpenRange opens the byte interval [start, end).
	OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error)
}

type lazyBlock struct {
	stat Stat
	open Opener
}

// NewBlock builds a Block from a Stat and an Opener. This is the only
// Block shape: a metadata record plus a capability to open content.
func NewBlock(stat Stat, open Opener) Block {
	return &lazyBlock{stat: stat, open: open}
}

func (b *lazyBlock) ID() mh.Multihash    { return b.stat.ID }
func (b *lazyBlock) Size() int64         { return b.stat.Size }
func (b *lazyBlock) StoredAt() time.Time { return b.stat.StoredAt }

func (b *lazyBlock) Open(ctx context.Context) (io.ReadCloser, error) {
	return b.open(ctx, nil)
}

func (b *lazyBlock) OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("invalid byte range [%d,%d)", start, end)
	}
	return b.open(ctx, &Range{Start: start, End: end})
}

// FromBytes wraps in-memory content as a Block, typically as input to Put.
// The digest is trusted, never re-derived from the data.
func FromBytes(id mh.Multihash, data []byte) Block {
	stat := Stat{
		ID:       id,
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	}

	return NewBlock(stat, func(_ context.Context, rng *Range) (io.ReadCloser, error) {
		if rng == nil {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		if rng.Start < 0 || rng.End > int64(len(data)) || rng.End <= rng.Start {
			return nil, fmt.Errorf("invalid byte range [%d,%d) for %d byte block", rng.Start, rng.End, len(data))
		}
		return io.NopCloser(bytes.NewReader(data[rng.Start:rng.End])), nil
	})
}
