package verify

import (
	"errors"

	"github.com/lumen-arcade/saveguard/pkg/canonical"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/envelope"
	"github.com/lumen-arcade/saveguard/pkg/save"
)

// signingExcluded lists the envelope fields attached after signing. They
// must match what the producing side nulls in its signing view, or no
// signature can ever round-trip.
var signingExcluded = map[string]bool{
	"signature":          true,
	"publicKey":          true,
	"validationIssues":   true,
	"recentTransactions": true,
}

// SignedBytes reconstructs the exact bytes the producer signed from a
// received document: the post-signing envelope fields are stripped and the
// result canonically encoded. The reconstruction works on the raw decoded
// map, not the envelope struct, so fields from newer producers survive.
func SignedBytes(doc map[string]any) ([]byte, error) {
	sec, ok := doc[save.SecurityField].(map[string]any)
	if !ok {
		return nil, errors.New("document has no security block")
	}

	view := make(map[string]any, len(sec))
	for k, v := range sec {
		if signingExcluded[k] {
			continue
		}
		view[k] = v
	}

	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		stripped[k] = v
	}
	stripped[save.SecurityField] = view
	return canonical.Encode(stripped)
}

// VerifySignature checks the document's embedded signature against its
// reconstructed signed bytes using the embedded public key. Fails closed:
// any malformation — missing envelope, half-present signature material,
// undecodable key — returns false, never an error or a panic.
func VerifySignature(doc map[string]any, format crypto.SignatureFormat) bool {
	env, err := save.ParseEnvelope(doc)
	if err != nil || env == nil || !env.Signed() {
		return false
	}
	data, err := SignedBytes(doc)
	if err != nil {
		return false
	}
	ok, err := crypto.Verify(env.PublicKey, env.Signature, data, format)
	return err == nil && ok
}

// hasPartialSignature reports a violated presence invariant: exactly one of
// signature/publicKey set. Such envelopes are treated as unsigned but
// worth flagging.
func hasPartialSignature(env *envelope.SecurityEnvelope) bool {
	if env == nil {
		return false
	}
	return (env.Signature == "") != (env.PublicKey == "")
}
