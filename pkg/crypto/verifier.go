package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// SignatureFormat selects how signature bytes are interpreted.
//
// The producing runtime emits signatures as the raw fixed-length
// concatenation of the two scalar components (r then s, each zero-padded to
// the curve's field width). A verifier configured for the ASN.1 DER layout
// will reject those well-formed signatures as structurally invalid, so the
// format is an explicit configuration knob rather than auto-detected.
type SignatureFormat string

const (
	// FormatP1363 is the raw fixed-width r‖s layout (the default).
	FormatP1363 SignatureFormat = "p1363"
	// FormatASN1 is the tag-length-value DER layout.
	FormatASN1 SignatureFormat = "asn1"
)

// Verify checks a base64 signature over data against a claimed exported
// public key, interpreting the signature bytes per format.
//
// Verification fails closed: malformed keys, malformed signatures and
// mismatches all return false with a descriptive error; it never panics.
func Verify(publicKeyExported, signature string, data []byte, format SignatureFormat) (bool, error) {
	pub, err := ImportPublicKey(publicKeyExported)
	if err != nil {
		return false, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature base64: %w", err)
	}

	digest := sha256.Sum256(data)

	switch format {
	case FormatASN1:
		return ecdsa.VerifyASN1(pub, digest[:], sig), nil
	case FormatP1363, "":
		if len(sig) != 2*p256FieldBytes {
			return false, fmt.Errorf("invalid raw signature length %d, want %d", len(sig), 2*p256FieldBytes)
		}
		r := new(big.Int).SetBytes(sig[:p256FieldBytes])
		s := new(big.Int).SetBytes(sig[p256FieldBytes:])
		return ecdsa.Verify(pub, digest[:], r, s), nil
	default:
		return false, fmt.Errorf("unknown signature format %q", format)
	}
}
