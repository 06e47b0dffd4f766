package ca

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/jmcleod/certhand/admin"
	"github.com/jmcleod/certhand/internal/util"
	"github.com/jmcleod/certhand/storage"
)

// Verify checks the host's issued certificate: it must exist, must not
// be revoked, must be inside its validity window, and must chain to the
// CA certificate. Failures are reported as *admin.VerificationError so
// the listing classifier can capture them.
func (c *CA) Verify(_ context.Context, host string) error {
	cert, err := c.certificate(host)
	if errors.Is(err, storage.ErrNotFound) {
		return &admin.VerificationError{Host: host, Reason: "certificate not found"}
	}
	if err != nil {
		return err
	}

	revoked, err := c.isRevoked(cert)
	if err != nil {
		return err
	}
	if revoked {
		return &admin.VerificationError{Host: host, Reason: "certificate revoked"}
	}

	now := time.Now()
	if now.After(cert.NotAfter) {
		return &admin.VerificationError{Host: host, Reason: "certificate has expired"}
	}
	if now.Before(cert.NotBefore) {
		return &admin.VerificationError{Host: host, Reason: "certificate is not yet valid"}
	}

	roots := x509.NewCertPool()
	roots.AddCert(c.caCert)
	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return &admin.VerificationError{Host: host, Reason: err.Error()}
	}
	return nil
}

// Revoke marks the host's certificate revoked. The certificate record is
// kept; verification and listing report it as invalid from now on.
func (c *CA) Revoke(_ context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cert, err := c.certificate(host)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", host, ErrCertNotFound)
	}
	if err != nil {
		return err
	}

	entries, err := c.loadRevocations()
	if err != nil {
		return err
	}
	serial := util.HexEncode(cert.SerialNumber.Bytes())
	for _, e := range entries {
		if e.Serial == serial {
			return fmt.Errorf("%s: %w", host, ErrAlreadyRevoked)
		}
	}

	entries = append(entries, revocationEntry{
		ID:        uuid.NewString(),
		Host:      host,
		Serial:    serial,
		RevokedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return c.saveRevocations(entries)
}

// Destroy removes every record the authority holds for the host:
// certificate, pending request, and any stored key. Destroying a host
// with no records at all is an error.
func (c *CA) Destroy(_ context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, kind := range []string{storage.KindCertificate, storage.KindRequest, storage.KindKey} {
		err := c.repo.Delete(kind, host)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, storage.ErrNotFound):
		default:
			return pkgerrors.Wrapf(err, "removing %s record", kind)
		}
	}
	if removed == 0 {
		return fmt.Errorf("could not find any records for %s", host)
	}
	return nil
}

// Print returns a textual rendering of the host's certificate, or the
// empty string when the authority holds none.
func (c *CA) Print(_ context.Context, host string) (string, error) {
	data, err := c.repo.Get(storage.KindCertificate, host)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cert, err := parseCertificatePEM(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Certificate: %s\n", cert.Subject)
	fmt.Fprintf(&b, "  Issuer:     %s\n", cert.Issuer)
	fmt.Fprintf(&b, "  Serial:     %s\n", util.HexEncode(cert.SerialNumber.Bytes()))
	fmt.Fprintf(&b, "  Not Before: %s\n", cert.NotBefore.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  Not After:  %s\n", cert.NotAfter.UTC().Format(time.RFC3339))
	if len(cert.DNSNames) > 0 {
		fmt.Fprintf(&b, "  DNS Names:  %s\n", strings.Join(cert.DNSNames, ", "))
	}
	b.Write(data)
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// ---------------------------------------------------------------------------
// Revocation list persistence
// ---------------------------------------------------------------------------

func (c *CA) loadRevocations() ([]revocationEntry, error) {
	data, err := c.repo.Get(storage.KindState, revocationsRecordName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading revocation list")
	}
	var entries []revocationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding revocation list")
	}
	return entries, nil
}

func (c *CA) saveRevocations(entries []revocationEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding revocation list")
	}
	if err := c.repo.Put(storage.KindState, revocationsRecordName, data); err != nil {
		return pkgerrors.Wrap(err, "storing revocation list")
	}
	return nil
}

func (c *CA) isRevoked(cert *x509.Certificate) (bool, error) {
	entries, err := c.loadRevocations()
	if err != nil {
		return false, err
	}
	serial := util.HexEncode(cert.SerialNumber.Bytes())
	for _, e := range entries {
		if e.Serial == serial {
			return true, nil
		}
	}
	return false, nil
}
