//go:build !gcp

package archive

import (
	"context"
	"errors"
)

func newGCSArchive(_ context.Context, _, _ string) (Archive, error) {
	return nil, errors.New("GCS support not compiled in (build with -tags gcp)")
}
