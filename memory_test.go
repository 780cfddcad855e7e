package blockbucket

import (
	"context"
	"fmt"
	"io"
	"testing"

	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDigest(t *testing.T, content string) mh.Multihash {
	t.Helper()
	id, err := mh.Sum([]byte(content), mh.SHA2_256, -1)
	require.NoError(t, err)
	return id
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("some content")
	id := testDigest(t, string(data))

	_, err := store.Stat(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	blk, err := store.Put(ctx, FromBytes(id, data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blk.Size())

	// Idempotent: a second put returns the existing block.
	again, err := store.Put(ctx, FromBytes(id, data))
	require.NoError(t, err)
	assert.Equal(t, blk.StoredAt(), again.StoredAt())

	stat, err := store.Stat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, stat.ID)
	assert.Equal(t, int64(len(data)), stat.Size)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	rc, err := got.Open(ctx)
	require.NoError(t, err)
	read, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, read)

	rr, err := got.OpenRange(ctx, 5, 12)
	require.NoError(t, err)
	part, err := io.ReadAll(rr)
	require.NoError(t, err)
	require.NoError(t, rr.Close())
	assert.Equal(t, []byte("content"), part)

	deleted, err := store.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var hexes []string
	for i := 0; i < 5; i++ {
		data := []byte(fmt.Sprintf("block-%d", i))
		id := testDigest(t, string(data))
		_, err := store.Put(ctx, FromBytes(id, data))
		require.NoError(t, err)
		hexes = append(hexes, id.HexString())
	}

	collect := func(optFns ...func(*ListOptions)) []string {
		var got []string
		for blk, err := range store.List(ctx, optFns...) {
			require.NoError(t, err)
			got = append(got, blk.ID().HexString())
		}
		return got
	}

	all := collect()
	require.Len(t, all, 5)
	assert.IsIncreasing(t, all)

	limited := collect(WithLimit(2))
	assert.Equal(t, all[:2], limited)

	after := collect(WithAfter(all[1]))
	assert.Equal(t, all[2:], after)

	before := collect(WithBefore(all[3]))
	assert.Equal(t, all[:3], before)

	window := collect(WithAfter(all[0]), WithBefore(all[4]), WithLimit(2))
	assert.Equal(t, all[1:3], window)

	// Consumer stop is safe mid-iteration.
	for range store.List(ctx) {
		break
	}
}

func TestMemoryStore_Erase(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, content := range []string{"a", "b", "c"} {
		id := testDigest(t, content)
		_, err := store.Put(ctx, FromBytes(id, []byte(content)))
		require.NoError(t, err)
	}

	require.NoError(t, store.Erase(ctx))

	for range store.List(ctx) {
		t.Fatal("expected empty listing after erase")
	}
}
