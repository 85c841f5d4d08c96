package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/progression"
	"github.com/lumen-arcade/saveguard/pkg/save"
)

// signedDoc produces a signed save document the way a real client would,
// then round-trips it through JSON to simulate the wire.
func signedDoc(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := crypto.NewECDSASigner(kp)
	require.NoError(t, err)

	p := save.NewPreparer("dev-1", signer, progression.NewValidator(progression.DefaultLimits()), baseline.NewMemoryStore())
	payload, _, err := p.Prepare(context.Background(), data)
	require.NoError(t, err)

	blob, err := json.Marshal(payload)
	require.NoError(t, err)
	return decodeDoc(t, blob)
}

func decodeDoc(t *testing.T, blob []byte) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var doc map[string]any
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 123.45, "balance": 10.0})
	assert.True(t, VerifySignature(doc, crypto.FormatP1363))
}

func TestVerifySignature_DetectsTamperedField(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 123.45})
	doc["bankBalance"] = json.Number("999999")
	assert.False(t, VerifySignature(doc, crypto.FormatP1363))
}

func TestVerifySignature_DetectsTamperedEnvelope(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 1.0})
	sec := doc[save.SecurityField].(map[string]any)
	sec["flagged"] = true
	assert.False(t, VerifySignature(doc, crypto.FormatP1363))
}

func TestVerifySignature_FailsClosed(t *testing.T) {
	cases := map[string]map[string]any{
		"no envelope":     {"bankBalance": 1.0},
		"empty envelope":  {save.SecurityField: map[string]any{}},
		"garbage sig":     {save.SecurityField: map[string]any{"signature": "!!", "publicKey": "??"}},
		"half signature":  {save.SecurityField: map[string]any{"signature": "abc"}},
		"envelope no map": {save.SecurityField: "not an object"},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, VerifySignature(doc, crypto.FormatP1363))
		})
	}
}

func TestVerifySignature_FormatMismatch(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 1.0})
	assert.False(t, VerifySignature(doc, crypto.FormatASN1),
		"raw signatures must not verify under the DER layout")
}

func TestSignedBytes_IgnoresPostSigningFields(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 1.0})
	before, err := SignedBytes(doc)
	require.NoError(t, err)

	sec := doc[save.SecurityField].(map[string]any)
	sec["validationIssues"] = []any{"anything"}
	sec["recentTransactions"] = []any{map[string]any{"id": "x"}}

	after, err := SignedBytes(doc)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSignedBytes_PreservesUnknownEnvelopeFields(t *testing.T) {
	doc := signedDoc(t, map[string]any{"bankBalance": 1.0})
	before, err := SignedBytes(doc)
	require.NoError(t, err)

	// A newer producer may sign fields this build does not know about.
	sec := doc[save.SecurityField].(map[string]any)
	sec["futureField"] = "covered by the signature"

	after, err := SignedBytes(doc)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
