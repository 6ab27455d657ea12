package s3

import (
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
)

// UploadConfig tunes how documents are written to S3. Sample index
// documents are small, so most uploads are a single PutObject; parts only
// matter for chromosomes with very dense batches.
type UploadConfig struct {
	// PartSize of multipart uploads. Values below the S3 minimum are raised.
	PartSize int64
	// Concurrency of part uploads within one blob.
	Concurrency int
	// EnableChecksum asks S3 to verify a CRC32C of the body.
	EnableChecksum bool
	// ContentType of written objects. Empty leaves it to S3.
	ContentType string
}

// DefaultUploadConfig returns the settings used by New and NewStore.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       manager.MinUploadPartSize,
		Concurrency:    2,
		EnableChecksum: true,
		ContentType:    "application/json",
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = max(cfg.PartSize, manager.MinUploadPartSize)
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		// a failed document write must not leave billable parts behind
		u.LeavePartsOnError = false
	})
}
