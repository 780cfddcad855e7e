package blockbucket

import (
	"context"
	"iter"
	"os"

	mh "github.com/multiformats/go-multihash"
)

// ErrNotFound is returned when a block does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ListOptions bounds a listing.
//
// After and Before are raw hex subkeys (the portion of the object key after
// the store prefix). They do not have to be complete digests: truncated hex
// works for range sharding because the comparison is plain string order.
type ListOptions struct {
	// After resumes the listing strictly after this hex subkey.
	After string
	// Before terminates the listing at the first subkey that is not
	// strictly less than this bound (exclusive upper cutoff).
	Before string
	// Limit caps the number of yielded blocks. Zero means unlimited.
	Limit int
}

// WithAfter resumes a listing strictly after the given hex subkey.
func WithAfter(hexSubkey string) func(*ListOptions) {
	return func(o *ListOptions) {
		o.After = hexSubkey
	}
}

// WithBefore stops a listing at the given hex subkey (exclusive).
func WithBefore(hexSubkey string) func(*ListOptions) {
	return func(o *ListOptions) {
		o.Before = hexSubkey
	}
}

// WithLimit caps the number of blocks a listing yields.
func WithLimit(n int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.Limit = n
	}
}

// BlockStore is a content-addressed store of immutable blocks.
//
// Blocks are keyed by their multihash digest; the digest is produced by the
// caller and trusted, never re-derived from content. All operations are
// independently invocable; the store holds no state across calls beyond its
// construction-time configuration.
type BlockStore interface {
	// Stat returns metadata for a stored block, or ErrNotFound.
	Stat(ctx context.Context, id mh.Multihash) (Stat, error)

	// Get returns a lazy handle to a stored block, or ErrNotFound.
	// No content is transferred until the handle is opened.
	Get(ctx context.Context, id mh.Multihash) (Block, error)

	// Put stores a block if absent. When the id already exists the call
	// is a no-op returning the existing block: ids are content digests,
	// so identical ids imply identical content.
	Put(ctx context.Context, blk Block) (Block, error)

	// Delete removes a block. It reports false, without issuing a
	// backend delete, when the block does not exist.
	Delete(ctx context.Context, id mh.Multihash) (bool, error)

	// List streams stored blocks in ascending key order. The sequence is
	// finite, one-pass and non-restartable; breaking out of the range
	// loop stops further backend calls.
	List(ctx context.Context, optFns ...func(*ListOptions)) iter.Seq2[Block, error]

	// Erase deletes every object under the store's namespace, including
	// objects whose keys do not parse as block keys. The first deletion
	// failure aborts the remainder; partially-erased state is possible.
	Erase(ctx context.Context) error
}
