// Package export writes compressed outputs to a destination backend.
// Each backend takes its settings from a per-call accessInfo map so
// callers can target different destinations per batch.
package export

import (
	"context"
	"fmt"
	"io"
)

// Write streams a compressed image to the backend selected by
// backendType: "directory", "s3", "gcs" or "sftp".
func Write(ctx context.Context, accessInfo map[string]string, reader io.Reader, backendType string) error {
	switch backendType {
	case "directory":
		if err := WriteToDirectory(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to write to directory: %w", err)
		}
	case "s3":
		if err := UploadToS3(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to upload to S3: %w", err)
		}
	case "gcs":
		if err := UploadToGCS(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to upload to GCS: %w", err)
		}
	case "sftp":
		if err := UploadToSFTP(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to upload to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown backend type: %s", backendType)
	}
	return nil
}
