package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"savectl", "bogus"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Usage")
}

func TestKeygenSignVerify_Pipeline(t *testing.T) {
	keyDir := filepath.Join(t.TempDir(), "keys")
	saveFile := filepath.Join(t.TempDir(), "save.json")
	require.NoError(t, os.WriteFile(saveFile, []byte(`{"bankBalance": 42, "balance": 7}`), 0o644))

	var out, errOut bytes.Buffer
	code := Run([]string{"savectl", "keygen", "-dir", keyDir}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	pubKey := strings.TrimSpace(out.String())
	assert.NotEmpty(t, pubKey)

	// keygen is idempotent: a second run returns the same key.
	out.Reset()
	code = Run([]string{"savectl", "keygen", "-dir", keyDir}, &out, &errOut)
	require.Equal(t, 0, code)
	assert.Equal(t, pubKey, strings.TrimSpace(out.String()))

	out.Reset()
	code = Run([]string{"savectl", "sign", "-dir", keyDir, "-device", "dev-1", "-in", saveFile}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	signedFile := filepath.Join(t.TempDir(), "signed.json")
	require.NoError(t, os.WriteFile(signedFile, out.Bytes(), 0o644))

	out.Reset()
	code = Run([]string{"savectl", "verify", "-in", signedFile}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "signature: ok")
}

func TestVerify_TamperedDocumentFails(t *testing.T) {
	keyDir := filepath.Join(t.TempDir(), "keys")
	saveFile := filepath.Join(t.TempDir(), "save.json")
	require.NoError(t, os.WriteFile(saveFile, []byte(`{"bankBalance": 42}`), 0o644))

	var out, errOut bytes.Buffer
	code := Run([]string{"savectl", "sign", "-dir", keyDir, "-device", "dev-1", "-in", saveFile}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	tampered := strings.Replace(out.String(), "42", "999999", 1)
	signedFile := filepath.Join(t.TempDir(), "signed.json")
	require.NoError(t, os.WriteFile(signedFile, []byte(tampered), 0o644))

	out.Reset()
	code = Run([]string{"savectl", "verify", "-in", signedFile}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "INVALID")
}
