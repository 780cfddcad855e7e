package blockbucket

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	mh "github.com/multiformats/go-multihash"
)

// MemoryStore is an in-memory BlockStore implementation for testing.
// It mirrors the listing and idempotent-put semantics of the backend
// adapters without any network dependency.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[string]memoryEntry // hex digest -> entry
}

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// NewMemoryStore creates a new in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks: make(map[string]memoryEntry),
	}
}

// Stat returns metadata for a stored block.
func (m *MemoryStore) Stat(_ context.Context, id mh.Multihash) (Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.blocks[id.HexString()]
	if !ok {
		return Stat{}, ErrNotFound
	}
	return Stat{ID: id, Size: int64(len(entry.data)), StoredAt: entry.storedAt}, nil
}

// Get returns a lazy handle to a stored block.
func (m *MemoryStore) Get(ctx context.Context, id mh.Multihash) (Block, error) {
	stat, err := m.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewBlock(stat, m.opener(id)), nil
}

// Put stores a block if absent. Existing blocks are returned unchanged.
func (m *MemoryStore) Put(ctx context.Context, blk Block) (Block, error) {
	hex := blk.ID().HexString()

	m.mu.Lock()
	if entry, ok := m.blocks[hex]; ok {
		m.mu.Unlock()
		stat := Stat{ID: blk.ID(), Size: int64(len(entry.data)), StoredAt: entry.storedAt}
		return NewBlock(stat, m.opener(blk.ID())), nil
	}
	m.mu.Unlock()

	rc, err := blk.Open(ctx)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	entry := memoryEntry{data: data, storedAt: time.Now().UTC()}

	m.mu.Lock()
	m.blocks[hex] = entry
	m.mu.Unlock()

	stat := Stat{ID: blk.ID(), Size: int64(len(data)), StoredAt: entry.storedAt}
	return NewBlock(stat, m.opener(blk.ID())), nil
}

// Delete removes a block, reporting whether it existed.
func (m *MemoryStore) Delete(_ context.Context, id mh.Multihash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hex := id.HexString()
	if _, ok := m.blocks[hex]; !ok {
		return false, nil
	}
	delete(m.blocks, hex)
	return true, nil
}

// List streams stored blocks in ascending hex-key order.
func (m *MemoryStore) List(_ context.Context, optFns ...func(*ListOptions)) iter.Seq2[Block, error] {
	var opts ListOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(yield func(Block, error) bool) {
		m.mu.RLock()
		keys := make([]string, 0, len(m.blocks))
		for hex := range m.blocks {
			keys = append(keys, hex)
		}
		m.mu.RUnlock()
		sort.Strings(keys)

		yielded := 0
		for _, hex := range keys {
			if opts.After != "" && hex <= opts.After {
				continue
			}
			if opts.Before != "" && hex >= opts.Before {
				return
			}
			if opts.Limit > 0 && yielded >= opts.Limit {
				return
			}

			id, err := mh.FromHexString(hex)
			if err != nil {
				continue
			}
			m.mu.RLock()
			entry, ok := m.blocks[hex]
			m.mu.RUnlock()
			if !ok {
				continue
			}

			stat := Stat{ID: id, Size: int64(len(entry.data)), StoredAt: entry.storedAt}
			if !yield(NewBlock(stat, m.opener(id)), nil) {
				return
			}
			yielded++
		}
	}
}

// Erase removes every stored block.
func (m *MemoryStore) Erase(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[string]memoryEntry)
	return nil
}

func (m *MemoryStore) opener(id mh.Multihash) Opener {
	return func(_ context.Context, rng *Range) (io.ReadCloser, error) {
		m.mu.RLock()
		entry, ok := m.blocks[id.HexString()]
		m.mu.RUnlock()
		if !ok {
			return nil, ErrNotFound
		}

		// Copy to prevent external mutation
		data := make([]byte, len(entry.data))
		copy(data, entry.data)

		if rng == nil {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		if rng.Start < 0 || rng.End > int64(len(data)) || rng.End <= rng.Start {
			return nil, io.EOF
		}
		return io.NopCloser(bytes.NewReader(data[rng.Start:rng.End])), nil
	}
}

var _ BlockStore = (*MemoryStore)(nil)
