// Package blockbucket adapts a content-addressed block store onto
// S3-compatible object storage.
//
// A block is an immutable byte sequence identified by a multihash digest.
// Each block is persisted as one object, keyed by the lowercase hex encoding
// of its digest under an optional path prefix. Digests are produced by the
// caller and trusted; the store never re-derives them from content.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("blocks/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	id, _ := multihash.Sum(data, multihash.SHA2_256, -1)
//	blk, _ := store.Put(ctx, blockbucket.FromBytes(id, data))
//
//	got, _ := store.Get(ctx, id)       // metadata only, no transfer
//	rc, _ := got.Open(ctx)             // content on demand
//	defer rc.Close()
//
// # Listing
//
// List streams blocks lazily in ascending key order:
//
//	for blk, err := range store.List(ctx, blockbucket.WithLimit(100)) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(blk.ID().HexString(), blk.Size())
//	}
//
// Breaking out of the loop stops backend pagination.
//
// # Implementations
//
//   - s3: AWS S3 and S3-compatible endpoints (aws-sdk-go-v2)
//   - minio: MinIO and S3-compatible endpoints (minio-go)
//   - MemoryStore: in-memory reference implementation for tests
package blockbucket
