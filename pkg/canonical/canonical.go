// Package canonical provides RFC 8785 (JSON Canonicalization Scheme)
// serialization of save payloads. The canonical form is the exact byte input
// to every signature in the system: any nondeterminism here silently breaks
// verification between the device and the service.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Encode returns the canonical JSON form of any JSON-compatible value.
//
// Two values that are deeply equal encode to identical bytes regardless of
// map insertion order: object keys are sorted lexicographically by UTF-8
// bytes, arrays keep their element order, numbers use ES6 serialization,
// and no whitespace or HTML escaping is emitted.
func Encode(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return out, nil
}

// Canonicalize rewrites already-encoded JSON text into canonical form.
// Used on the validating side, where the payload arrives as raw JSON.
func Canonicalize(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 hex digest of the canonical form of v.
// Used as the content address for archived evidence blobs.
func Hash(v interface{}) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
