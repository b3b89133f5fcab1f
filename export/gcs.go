package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"squish/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// UploadToGCS uploads content to a Google Cloud Storage object using a
// service account key supplied in accessInfo.
// accessInfo keys: bucket, object, credentialsJSON (base64 or raw JSON).
func UploadToGCS(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	bucketName := accessInfo["bucket"]
	objectName := accessInfo["object"]
	if bucketName == "" || objectName == "" {
		return fmt.Errorf("missing required accessInfo keys: bucket, object")
	}

	// Accept the key either base64-encoded or as raw JSON.
	credentialsJSON, err := base64.StdEncoding.DecodeString(accessInfo["credentialsJSON"])
	if err != nil {
		credentialsJSON = []byte(accessInfo["credentialsJSON"])
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err = io.Copy(wc, reader); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return nil
}
