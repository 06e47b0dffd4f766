// Package ca implements a certificate authority over a
// storage.Repository. It issues, revokes, verifies and destroys host
// certificates, tracks pending certificate requests, and satisfies the
// admin.Authority operation set consumed by the administrative command
// interface.
package ca

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/jmcleod/certhand/admin"
	"github.com/jmcleod/certhand/internal/util"
	"github.com/jmcleod/certhand/storage"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrCertNotFound is returned when the host has no issued certificate.
	ErrCertNotFound = errors.New("certificate not found")

	// ErrRequestNotFound is returned when the host has no pending
	// certificate request.
	ErrRequestNotFound = errors.New("certificate request not found")

	// ErrAlreadyRevoked is returned when revoking a certificate that is
	// already revoked.
	ErrAlreadyRevoked = errors.New("certificate is already revoked")

	// ErrAlreadyIssued is returned when a certificate already exists for
	// the host.
	ErrAlreadyIssued = errors.New("certificate already issued for host")

	// ErrDisallowedAltNames is returned when signing a request that
	// carries DNS subject alternative names without permission to.
	ErrDisallowedAltNames = errors.New("request carries DNS subject alternative names; signing them must be allowed explicitly")
)

// Reserved record names in the state kind.
const (
	stateRecordName       = "ca"
	caCertRecordName      = "ca_cert"
	caKeyRecordName       = "ca_key"
	revocationsRecordName = "revocations"
)

const (
	certPEMType = "CERTIFICATE"
	csrPEMType  = "CERTIFICATE REQUEST"
)

// ---------------------------------------------------------------------------
// Configuration and persistent state
// ---------------------------------------------------------------------------

// Config controls authority initialization and issuance.
type Config struct {
	// CommonName is the CA certificate subject, used when the repository
	// holds no CA yet. Defaults to "certhand CA".
	CommonName string

	// TTL is the lifetime of issued host certificates. Defaults to five years.
	TTL time.Duration

	// CATTL is the lifetime of the CA certificate itself on first
	// initialization. Defaults to ten years.
	CATTL time.Duration

	// Passphrase, when non-empty, wraps the CA private key at rest with
	// an argon2id-derived AES-256-GCM key.
	Passphrase string
}

func (cfg Config) withDefaults() Config {
	if cfg.CommonName == "" {
		cfg.CommonName = "certhand CA"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * 365 * 24 * time.Hour
	}
	if cfg.CATTL == 0 {
		cfg.CATTL = 10 * 365 * 24 * time.Hour
	}
	return cfg
}

// caState is the persistent metadata for an initialized authority.
type caState struct {
	Subject   string `json:"subject"`
	CreatedAt string `json:"created_at"`
	KeyCipher string `json:"key_cipher"` // "none" or "argon2id-aes256gcm"
}

// revocationEntry records a single revoked certificate.
type revocationEntry struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Serial    string `json:"serial"`
	RevokedAt string `json:"revoked_at"`
}

const (
	keyCipherNone    = "none"
	keyCipherWrapped = "argon2id-aes256gcm"
)

// ---------------------------------------------------------------------------
// CA
// ---------------------------------------------------------------------------

// CA is a certificate authority backed by a storage.Repository. It
// serializes its own mutations; callers need no external locking.
type CA struct {
	repo storage.Repository
	keys KeyStore
	cfg  Config

	caCert  *x509.Certificate
	caKeyID string

	mu sync.Mutex
}

var _ admin.Authority = (*CA)(nil)

// Open loads the authority from the repository, initializing a fresh
// self-signed CA certificate and signing key on first use.
func Open(ctx context.Context, repo storage.Repository, cfg Config) (*CA, error) {
	c := &CA{
		repo: repo,
		keys: NewSoftwareKeyStore(),
		cfg:  cfg.withDefaults(),
	}

	stateData, err := repo.Get(storage.KindState, stateRecordName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := c.initialize(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case err != nil:
		return nil, pkgerrors.Wrap(err, "loading CA state")
	}

	var state caState
	if err := json.Unmarshal(stateData, &state); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding CA state")
	}
	if err := c.load(state); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CA) initialize(_ context.Context) error {
	keyID, err := c.keys.GenerateKey()
	if err != nil {
		return err
	}
	signer, err := c.keys.Signer(keyID)
	if err != nil {
		return err
	}

	serial, err := util.RandomSerial()
	if err != nil {
		return err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: c.cfg.CommonName},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(c.cfg.CATTL),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		return pkgerrors.Wrap(err, "creating CA certificate")
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return pkgerrors.Wrap(err, "parsing CA certificate")
	}

	keyPEM, err := c.keys.ExportPEM(keyID)
	if err != nil {
		return err
	}
	keyRecord := keyPEM
	cipher := keyCipherNone
	if c.cfg.Passphrase != "" {
		keyRecord, err = util.WrapKey(keyPEM, c.cfg.Passphrase)
		if err != nil {
			return err
		}
		cipher = keyCipherWrapped
	}
	util.WipeBytes(keyPEM)

	state := caState{
		Subject:   c.cfg.CommonName,
		CreatedAt: now.UTC().Format(time.RFC3339),
		KeyCipher: cipher,
	}
	stateData, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding CA state")
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: der})
	if err := c.repo.Put(storage.KindState, caCertRecordName, certPEM); err != nil {
		return pkgerrors.Wrap(err, "storing CA certificate")
	}
	if err := c.repo.Put(storage.KindState, caKeyRecordName, keyRecord); err != nil {
		return pkgerrors.Wrap(err, "storing CA key")
	}
	if err := c.repo.Put(storage.KindState, stateRecordName, stateData); err != nil {
		return pkgerrors.Wrap(err, "storing CA state")
	}

	c.caCert = caCert
	c.caKeyID = keyID
	return nil
}

func (c *CA) load(state caState) error {
	certPEM, err := c.repo.Get(storage.KindState, caCertRecordName)
	if err != nil {
		return pkgerrors.Wrap(err, "loading CA certificate")
	}
	caCert, err := parseCertificatePEM(certPEM)
	if err != nil {
		return err
	}

	keyRecord, err := c.repo.Get(storage.KindState, caKeyRecordName)
	if err != nil {
		return pkgerrors.Wrap(err, "loading CA key")
	}
	keyPEM := keyRecord
	if state.KeyCipher == keyCipherWrapped {
		keyPEM, err = util.UnwrapKey(keyRecord, c.cfg.Passphrase)
		if err != nil {
			return pkgerrors.Wrap(err, "unwrapping CA key")
		}
	}
	keyID, err := c.keys.ImportPEM(keyPEM)
	util.WipeBytes(keyPEM)
	if err != nil {
		return err
	}

	c.caCert = caCert
	c.caKeyID = keyID
	return nil
}

// CACertificatePEM returns the PEM-encoded CA certificate.
func (c *CA) CACertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: c.caCert.Raw})
}

// Subject returns the CA certificate subject.
func (c *CA) Subject() string {
	return c.caCert.Subject.String()
}

// ---------------------------------------------------------------------------
// Host sets and lookups
// ---------------------------------------------------------------------------

// List returns the hosts holding issued certificates, sorted.
func (c *CA) List(_ context.Context) ([]string, error) {
	hosts, err := c.repo.List(storage.KindCertificate)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing certificates")
	}
	sort.Strings(hosts)
	return hosts, nil
}

// Waiting returns the hosts with pending certificate requests, sorted.
func (c *CA) Waiting(_ context.Context) ([]string, error) {
	hosts, err := c.repo.List(storage.KindRequest)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing certificate requests")
	}
	sort.Strings(hosts)
	return hosts, nil
}

// Certificate returns the issued certificate for host, or nil when there
// is none.
func (c *CA) Certificate(_ context.Context, host string) (admin.Credential, error) {
	cert, err := c.certificate(host)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &certificateCredential{cert: cert}, nil
}

// Request returns the pending certificate request for host, or nil when
// there is none.
func (c *CA) Request(_ context.Context, host string) (admin.Credential, error) {
	csr, err := c.request(host)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &requestCredential{csr: csr}, nil
}

func (c *CA) certificate(host string) (*x509.Certificate, error) {
	data, err := c.repo.Get(storage.KindCertificate, host)
	if err != nil {
		return nil, err
	}
	return parseCertificatePEM(data)
}

func (c *CA) request(host string) (*x509.CertificateRequest, error) {
	data, err := c.repo.Get(storage.KindRequest, host)
	if err != nil {
		return nil, err
	}
	return parseRequestPEM(data)
}

// ---------------------------------------------------------------------------
// Credential views
// ---------------------------------------------------------------------------

type certificateCredential struct {
	cert *x509.Certificate
}

func (c *certificateCredential) SubjectAltNames() []string {
	return c.cert.DNSNames
}

type requestCredential struct {
	csr *x509.CertificateRequest
}

func (r *requestCredential) SubjectAltNames() []string {
	return r.csr.DNSNames
}

// ---------------------------------------------------------------------------
// PEM helpers
// ---------------------------------------------------------------------------

func parseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != certPEMType {
		return nil, fmt.Errorf("no %s PEM block found", certPEMType)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parsing certificate")
	}
	return cert, nil
}

func parseRequestPEM(data []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != csrPEMType {
		return nil, fmt.Errorf("no %s PEM block found", csrPEMType)
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parsing certificate request")
	}
	return csr, nil
}
