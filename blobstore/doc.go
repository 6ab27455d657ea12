// Package blobstore provides the storage abstraction of the document
// backend.
//
// BlobStore is the interface for reading and writing whole blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with atomic renames
//   - s3.Store: Amazon S3, multipart uploads for large blobs
//   - minio.Store: MinIO and other S3 compatible servers
//   - CompressedStore: LZ4 or ZSTD compression on top of any store
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
