package s3

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockbucket"
)

// newFakeStore spins up an in-process S3 server and a store talking to it.
func newFakeStore(t *testing.T, optFns ...Option) (*Store, Client) {
	t.Helper()

	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket("test-bucket"))
	ts := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("TEST", "TEST", "")),
		config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ts.URL)
		o.UsePathStyle = true
	})

	store, err := NewFromClient(client, "test-bucket", optFns...)
	require.NoError(t, err)
	return store, client
}

func sumDigest(t *testing.T, data []byte) mh.Multihash {
	t.Helper()
	id, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return id
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newFakeStore(t, WithPrefix("blocks"))

	data := make([]byte, 4096)
	_, err := rand.Read(data)
	require.NoError(t, err)
	id := sumDigest(t, data)

	// Absent before put.
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, blockbucket.ErrNotFound)

	blk, err := store.Put(ctx, blockbucket.FromBytes(id, data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blk.Size())

	stat, err := store.Stat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, stat.ID)
	assert.Equal(t, int64(len(data)), stat.Size)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)

	rc, err := got.Open(ctx)
	require.NoError(t, err)
	whole, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, whole)

	rr, err := got.OpenRange(ctx, 10, 20)
	require.NoError(t, err)
	part, err := io.ReadAll(rr)
	require.NoError(t, err)
	require.NoError(t, rr.Close())
	assert.Equal(t, data[10:20], part)

	// Early close after a partial read must not disturb later reads.
	rc2, err := got.Open(ctx)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(rc2, buf)
	require.NoError(t, err)
	require.NoError(t, rc2.Close())
	require.NoError(t, rc2.Close())

	deleted, err := store.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_ListAndErase(t *testing.T) {
	ctx := context.Background()
	store, client := newFakeStore(t, WithPrefix("blocks"))

	var ids []mh.Multihash
	for _, content := range []string{"alpha", "bravo", "charlie", "delta"} {
		id := sumDigest(t, []byte(content))
		_, err := store.Put(ctx, blockbucket.FromBytes(id, []byte(content)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Foreign bucket content under the same prefix is not a block.
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String("test-bucket"),
		Key:    aws.String("blocks/notes.txt"),
		Body:   bytes.NewReader([]byte("not a block")),
	})
	require.NoError(t, err)

	var listed []string
	for blk, err := range store.List(ctx) {
		require.NoError(t, err)
		listed = append(listed, blk.ID().HexString())
	}
	assert.Len(t, listed, len(ids))
	assert.IsIncreasing(t, listed)

	var limited int
	for _, err := range store.List(ctx, blockbucket.WithLimit(2)) {
		require.NoError(t, err)
		limited++
	}
	assert.Equal(t, 2, limited)

	require.NoError(t, store.Erase(ctx))

	for _, err := range store.List(ctx) {
		require.NoError(t, err)
		t.Fatal("expected empty listing after erase")
	}

	// The foreign object is gone too.
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String("test-bucket"),
		Key:    aws.String("blocks/notes.txt"),
	})
	require.Error(t, err)
	assert.True(t, isNotFound(err))
}
