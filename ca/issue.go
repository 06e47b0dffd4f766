package ca

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/jmcleod/certhand/admin"
	"github.com/jmcleod/certhand/internal/util"
	"github.com/jmcleod/certhand/storage"
)

// SubmitRequest records a PEM-encoded certificate request for host,
// making it visible in the waiting set until signed or destroyed. The
// request's own signature is checked; its content is judged at signing
// time.
func (c *CA) SubmitRequest(_ context.Context, host string, csrPEM []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	csr, err := parseRequestPEM(csrPEM)
	if err != nil {
		return err
	}
	if err := csr.CheckSignature(); err != nil {
		return pkgerrors.Wrap(err, "checking request signature")
	}
	if _, err := c.repo.Get(storage.KindCertificate, host); err == nil {
		return fmt.Errorf("%s: %w", host, ErrAlreadyIssued)
	}
	if err := c.repo.Put(storage.KindRequest, host, csrPEM); err != nil {
		return pkgerrors.Wrap(err, "storing certificate request")
	}
	return nil
}

// Sign issues a certificate from the host's pending request and removes
// the request. Requests carrying DNS subject alternative names are
// refused unless allowDNSAltNames is set.
func (c *CA) Sign(_ context.Context, host string, allowDNSAltNames bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	csr, err := c.request(host)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", host, ErrRequestNotFound)
	}
	if err != nil {
		return err
	}

	if len(csr.DNSNames) > 0 && !allowDNSAltNames {
		return fmt.Errorf("%s: %w", host, ErrDisallowedAltNames)
	}

	if err := c.issue(host, csr.PublicKey, csr.DNSNames); err != nil {
		return err
	}
	if err := c.repo.Delete(storage.KindRequest, host); err != nil {
		return pkgerrors.Wrap(err, "removing signed request")
	}
	return nil
}

// Generate creates a key pair for host server-side and issues its
// certificate in one step. The generated private key is stored alongside
// the certificate for the operator to hand to the host.
func (c *CA) Generate(_ context.Context, host string, opts admin.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.repo.Get(storage.KindCertificate, host); err == nil {
		return fmt.Errorf("%s: %w", host, ErrAlreadyIssued)
	}

	keyID, err := c.keys.GenerateKey()
	if err != nil {
		return err
	}
	defer c.keys.Delete(keyID)

	signer, err := c.keys.Signer(keyID)
	if err != nil {
		return err
	}
	keyPEM, err := c.keys.ExportPEM(keyID)
	if err != nil {
		return err
	}
	defer util.WipeBytes(keyPEM)

	if err := c.issue(host, signer.Public(), opts.Strings(admin.OptDNSAltNames)); err != nil {
		return err
	}
	if err := c.repo.Put(storage.KindKey, host, keyPEM); err != nil {
		return pkgerrors.Wrap(err, "storing host key")
	}
	return nil
}

// issue creates, signs and stores a host certificate. The host's own
// identifier is always among the DNS names.
func (c *CA) issue(host string, pub crypto.PublicKey, altNames []string) error {
	serial, err := util.RandomSerial()
	if err != nil {
		return err
	}
	caSigner, err := c.keys.Signer(c.caKeyID)
	if err != nil {
		return err
	}

	dnsNames := []string{host}
	for _, name := range altNames {
		if name != host {
			dnsNames = append(dnsNames, name)
		}
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     dnsNames,
		NotBefore:    now.Add(-5 * time.Minute),
		NotAfter:     now.Add(c.cfg.TTL),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, c.caCert, pub, caSigner)
	if err != nil {
		return pkgerrors.Wrapf(err, "issuing certificate for %s", host)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: der})
	if err := c.repo.Put(storage.KindCertificate, host, certPEM); err != nil {
		return pkgerrors.Wrap(err, "storing certificate")
	}
	return nil
}
