// Package archive stores quarantined save payloads as content-addressed
// blobs so reviewers can examine the exact bytes that tripped a flag.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Archive is a write-once evidence store. Store returns a stable reference
// for the blob; storing identical bytes twice returns the same reference.
type Archive interface {
	Store(ctx context.Context, blob []byte) (string, error)
}

func contentKey(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// FromEnv builds an archive from a location URL:
//
//	file:///var/lib/saveguard/evidence
//	s3://bucket/prefix
//	gs://bucket/prefix   (requires the gcp build tag)
//
// An empty location yields nil: archiving is optional.
func FromEnv(ctx context.Context, location string) (Archive, error) {
	if location == "" {
		return nil, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid archive location %q: %w", location, err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "file":
		return NewFileArchive(u.Path)
	case "s3":
		return NewS3Archive(ctx, u.Host, prefix)
	case "gs":
		return newGCSArchive(ctx, u.Host, prefix)
	default:
		return nil, fmt.Errorf("unsupported archive scheme %q", u.Scheme)
	}
}
