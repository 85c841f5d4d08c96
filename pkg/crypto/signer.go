// Package crypto provides device keypair management and ECDSA P-256
// signing/verification over canonical save bytes.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// AlgorithmECDSAP256 identifies the signature algorithm carried in envelopes.
const AlgorithmECDSAP256 = "ECDSA-P256-SHA256"

// p256FieldBytes is the byte width of a P-256 scalar; raw signatures are two
// scalars, each zero-padded to this width.
const p256FieldBytes = 32

// Signer produces signatures over canonical payload bytes.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
	Algorithm() string
}

// ECDSASigner signs with a device P-256 key. Signatures are emitted in the
// raw fixed-width form (r then s, each zero-padded to 32 bytes), the same
// layout the device's WebCrypto-style runtime produces, base64 encoded.
type ECDSASigner struct {
	key *KeyPair
}

// NewECDSASigner wraps a keypair from LoadOrCreateKeyPair or GenerateKeyPair.
func NewECDSASigner(kp *KeyPair) (*ECDSASigner, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("nil keypair")
	}
	return &ECDSASigner{key: kp}, nil
}

// Sign hashes data with SHA-256 and returns the base64 raw r‖s signature.
func (s *ECDSASigner) Sign(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	r, sv, err := ecdsa.Sign(rand.Reader, s.key.Private, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}

	sig := make([]byte, 2*p256FieldBytes)
	r.FillBytes(sig[:p256FieldBytes])
	sv.FillBytes(sig[p256FieldBytes:])
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKey returns the exported (base64 SPKI) public half.
func (s *ECDSASigner) PublicKey() string {
	return s.key.PublicKeyExported
}

// Algorithm returns the envelope algorithm identifier.
func (s *ECDSASigner) Algorithm() string {
	return AlgorithmECDSAP256
}

// SignASN1 returns the signature in ASN.1 DER form instead of raw r‖s.
// Only used by tests demonstrating the cross-format rejection behavior;
// production devices emit the raw layout.
func (s *ECDSASigner) SignASN1(data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key.Private, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
