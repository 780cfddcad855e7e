// Package minio provides a MinIO implementation of the blockbucket.BlockStore
// interface for MinIO and other S3-compatible deployments.
//
// # Usage
//
//	client, _ := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store, err := blockminio.NewStore(client, "my-bucket",
//	    blockminio.WithPrefix("blocks/"),
//	)
//
// Semantics match the s3 package: idempotent puts, lazy reads, streamed
// listing with a hard upper cutoff, and erase-all.
package minio
