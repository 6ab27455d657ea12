// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("sample-index/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	backend := document.New(store, "study", 1)
//
// # Features
//
//   - Multipart uploads for large documents
//   - CRC32C checksums on upload
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
