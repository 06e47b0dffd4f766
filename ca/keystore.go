package ca

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// ErrKeyNotFound is returned when the referenced key ID does not exist.
var ErrKeyNotFound = errors.New("key not found")

// KeyStore abstracts private-key operations so the authority can work
// with in-process software keys, HSM-backed keys, or cloud KMS keys
// without changing calling code. A key ID is an opaque identifier whose
// format is implementation-defined.
type KeyStore interface {
	// GenerateKey creates a new signing key and returns its identifier.
	GenerateKey() (keyID string, err error)

	// Signer returns a [crypto.Signer] for the key identified by keyID,
	// used by x509.CreateCertificate.
	Signer(keyID string) (crypto.Signer, error)

	// ExportPEM returns the private key as PEM-encoded PKCS#8.
	ExportPEM(keyID string) ([]byte, error)

	// ImportPEM loads a PEM-encoded private key and returns its key ID.
	ImportPEM(pemData []byte) (keyID string, err error)

	// Delete removes the key identified by keyID from the store.
	Delete(keyID string) error
}

const keyPEMType = "PRIVATE KEY"

// SoftwareKeyStore keeps ECDSA P-256 keys in memory. Key material is
// held in memguard enclaves so it stays encrypted at rest in process
// memory between uses.
type SoftwareKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*memguard.Enclave
}

var _ KeyStore = (*SoftwareKeyStore)(nil)

// NewSoftwareKeyStore creates an empty software key store.
func NewSoftwareKeyStore() *SoftwareKeyStore {
	return &SoftwareKeyStore{keys: make(map[string]*memguard.Enclave)}
}

func (s *SoftwareKeyStore) GenerateKey() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating ECDSA key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("marshaling private key: %w", err)
	}
	return s.store(der), nil
}

func (s *SoftwareKeyStore) store(der []byte) string {
	keyID := uuid.NewString()
	s.mu.Lock()
	s.keys[keyID] = memguard.NewEnclave(der)
	s.mu.Unlock()
	return keyID
}

func (s *SoftwareKeyStore) Signer(keyID string) (crypto.Signer, error) {
	key, err := s.open(keyID)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *SoftwareKeyStore) open(keyID string) (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	enclave, ok := s.keys[keyID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", keyID, ErrKeyNotFound)
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()

	parsed, err := x509.ParsePKCS8PrivateKey(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", parsed)
	}
	return key, nil
}

func (s *SoftwareKeyStore) ExportPEM(keyID string) ([]byte, error) {
	s.mu.RLock()
	enclave, ok := s.keys[keyID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", keyID, ErrKeyNotFound)
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()

	return pem.EncodeToMemory(&pem.Block{Type: keyPEMType, Bytes: buf.Bytes()}), nil
}

func (s *SoftwareKeyStore) ImportPEM(pemData []byte) (string, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != keyPEMType {
		return "", fmt.Errorf("no %s PEM block found", keyPEMType)
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return s.store(block.Bytes), nil
}

func (s *SoftwareKeyStore) Delete(keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[keyID]; !ok {
		return fmt.Errorf("%s: %w", keyID, ErrKeyNotFound)
	}
	delete(s.keys, keyID)
	return nil
}
