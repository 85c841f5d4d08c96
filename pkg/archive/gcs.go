//go:build gcp

package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSArchive stores evidence blobs in a Google Cloud Storage bucket.
type GCSArchive struct {
	bucket *storage.BucketHandle
	prefix string
}

var _ Archive = (*GCSArchive)(nil)

func newGCSArchive(ctx context.Context, bucket, prefix string) (Archive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return &GCSArchive{bucket: client.Bucket(bucket), prefix: prefix}, nil
}

func (a *GCSArchive) Store(ctx context.Context, blob []byte) (string, error) {
	key := contentKey(blob)
	obj := a.bucket.Object(a.prefix + key + ".json")

	// DoesNotExist precondition makes concurrent stores of the same blob
	// race-free; losing the race is success.
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(blob); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return key, nil // already archived
		}
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	return key, nil
}
