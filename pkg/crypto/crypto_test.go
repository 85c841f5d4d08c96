package crypto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewECDSASigner(kp)
	require.NoError(t, err)

	data := []byte(`{"bankBalance":100,"security":{"deviceId":"d1"}}`)
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := Verify(signer.PublicKey(), sig, data, FormatP1363)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_TamperedDataFails(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewECDSASigner(kp)
	require.NoError(t, err)

	data := []byte(`{"bankBalance":100}`)
	sig, err := signer.Sign(data)
	require.NoError(t, err)

	ok, err := Verify(signer.PublicKey(), sig, []byte(`{"bankBalance":101}`), FormatP1363)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_CrossFormat(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewECDSASigner(kp)
	require.NoError(t, err)

	data := []byte("payload")

	rawSig, err := signer.Sign(data)
	require.NoError(t, err)
	derSig, err := signer.SignASN1(data)
	require.NoError(t, err)

	// Raw signature verifies under the raw format only.
	ok, err := Verify(signer.PublicKey(), rawSig, data, FormatP1363)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = Verify(signer.PublicKey(), rawSig, data, FormatASN1)
	assert.False(t, ok, "raw signature must be structurally invalid under DER")

	// DER signature verifies under the DER format only.
	ok, err = Verify(signer.PublicKey(), derSig, data, FormatASN1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = Verify(signer.PublicKey(), derSig, data, FormatP1363)
	assert.False(t, ok, "DER signature must be rejected by the raw decoder")
}

func TestVerify_FailsClosedOnGarbage(t *testing.T) {
	ok, err := Verify("not base64!!!", "also not base64!!!", []byte("x"), FormatP1363)
	assert.False(t, ok)
	assert.Error(t, err)

	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	ok, err = Verify(kp.PublicKeyExported, "AAAA", []byte("x"), FormatP1363)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestLoadOrCreateKeyPair_PersistsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	kp1, err := LoadOrCreateKeyPair(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, kp1)

	kp2, err := LoadOrCreateKeyPair(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, kp2)

	assert.Equal(t, kp1.PublicKeyExported, kp2.PublicKeyExported, "second load must reuse persisted key")
}

func TestLoadOrCreateKeyPair_NoCapability(t *testing.T) {
	kp, err := LoadOrCreateKeyPair(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, kp, "absent capability degrades to legacy, never errors")
}

func TestLoadOrCreateKeyPair_RegeneratesOnCorruptMaterial(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()
	require.NoError(t, store.Put(ctx, &KeyMaterial{
		PrivateKeyExported: "garbage",
		PublicKeyExported:  "garbage",
	}))

	kp, err := LoadOrCreateKeyPair(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, kp)

	// Regenerated material replaced the corrupt blob.
	m, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKeyExported, m.PublicKeyExported)
}

func TestFileKeyStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileKeyStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, &KeyMaterial{
		PrivateKeyExported: kp.PrivateKeyExported,
		PublicKeyExported:  kp.PublicKeyExported,
	}))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	imported, err := ImportKeyPair(got)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKeyExported, imported.PublicKeyExported)
}
