// Package s3 provides an S3 implementation of the blockbucket.BlockStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("blocks/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	blk, err := store.Put(ctx, blockbucket.FromBytes(id, data))
//
// # Features
//
//   - Idempotent puts: an existing digest is returned without re-upload
//   - Lazy reads with byte-range requests for partial fetches
//   - Streamed listing with explicit continuation-token pagination
//   - Drain-before-close on content streams to keep pooled connections reusable
//   - Configurable prefix for multi-tenant isolation
//   - Static, session, pluggable or environment-default credentials
package s3
