package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// KeyFileName is the fixed name key material is persisted under on a device.
const KeyFileName = "device_key.json"

// KeyMaterial is the persisted, exported form of a device keypair.
type KeyMaterial struct {
	PrivateKeyExported string `json:"privateKeyExported"` // base64 PKCS#8
	PublicKeyExported  string `json:"publicKeyExported"`  // base64 SPKI
}

// KeyStore persists key material for a single device.
type KeyStore interface {
	// Get returns the stored material, or nil when none exists.
	Get(ctx context.Context) (*KeyMaterial, error)
	// Put persists the material. Called at most once per device lifetime.
	Put(ctx context.Context, m *KeyMaterial) error
}

// KeyPair holds a device signing keypair together with its exported halves.
type KeyPair struct {
	Private            *ecdsa.PrivateKey
	PrivateKeyExported string
	PublicKeyExported  string
}

// LoadOrCreateKeyPair imports persisted key material if present and
// well-formed, otherwise generates a fresh P-256 keypair, persists it and
// returns it. A nil store means the device has no persistence capability;
// the call returns (nil, nil) and callers degrade to legacy/unsigned mode.
// Unreadable persisted material is replaced, not fatal.
func LoadOrCreateKeyPair(ctx context.Context, store KeyStore) (*KeyPair, error) {
	if store == nil {
		return nil, nil
	}

	m, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("key store read failed: %w", err)
	}
	if m != nil {
		kp, err := ImportKeyPair(m)
		if err == nil {
			return kp, nil
		}
		slog.Warn("persisted key material unreadable, regenerating", "error", err)
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, &KeyMaterial{
		PrivateKeyExported: kp.PrivateKeyExported,
		PublicKeyExported:  kp.PublicKeyExported,
	}); err != nil {
		return nil, fmt.Errorf("key store write failed: %w", err)
	}
	return kp, nil
}

// GenerateKeyPair creates a fresh P-256 keypair and exports both halves.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return exportKeyPair(priv)
}

// ImportKeyPair reconstructs a keypair from its exported form.
func ImportKeyPair(m *KeyMaterial) (*KeyPair, error) {
	der, err := base64.StdEncoding.DecodeString(m.PrivateKeyExported)
	if err != nil {
		return nil, fmt.Errorf("invalid private key base64: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type %T", parsed)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unexpected curve %s", priv.Curve.Params().Name)
	}
	return exportKeyPair(priv)
}

// ImportPublicKey parses a base64 SPKI public key as claimed by an envelope.
func ImportPublicKey(exported string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(exported)
	if err != nil {
		return nil, fmt.Errorf("invalid public key base64: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", parsed)
	}
	if pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unexpected curve %s", pub.Curve.Params().Name)
	}
	return pub, nil
}

func exportKeyPair(priv *ecdsa.PrivateKey) (*KeyPair, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("private key export failed: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key export failed: %w", err)
	}
	return &KeyPair{
		Private:            priv,
		PrivateKeyExported: base64.StdEncoding.EncodeToString(privDER),
		PublicKeyExported:  base64.StdEncoding.EncodeToString(pubDER),
	}, nil
}

// FileKeyStore persists key material as a JSON file in a device directory.
type FileKeyStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileKeyStore creates a store rooted at dir, creating it if needed.
func NewFileKeyStore(dir string) (*FileKeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to ensure key dir: %w", err)
	}
	return &FileKeyStore{dir: dir}, nil
}

func (s *FileKeyStore) Get(ctx context.Context) (*KeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, KeyFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var m KeyMaterial
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	return &m, nil
}

func (s *FileKeyStore) Put(ctx context.Context, m *KeyMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}
	path := filepath.Join(s.dir, KeyFileName)

	// Write to temp, then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit key file: %w", err)
	}
	return nil
}

// MemoryKeyStore is an in-memory KeyStore for tests and ephemeral devices.
type MemoryKeyStore struct {
	mu sync.Mutex
	m  *KeyMaterial
}

func NewMemoryKeyStore() *MemoryKeyStore { return &MemoryKeyStore{} }

func (s *MemoryKeyStore) Get(ctx context.Context) (*KeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m, nil
}

func (s *MemoryKeyStore) Put(ctx context.Context, m *KeyMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = m
	return nil
}
