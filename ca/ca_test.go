package ca_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/certhand/admin"
	"github.com/jmcleod/certhand/ca"
	"github.com/jmcleod/certhand/storage/memory"
)

func newTestCA(t *testing.T, cfg ca.Config) (*ca.CA, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	authority, err := ca.Open(t.Context(), repo, cfg)
	require.NoError(t, err)
	return authority, repo
}

// newCSR builds a PEM-encoded certificate request for host.
func newCSR(t *testing.T, host string, altNames ...string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: host},
		DNSNames: altNames,
	}, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
}

func TestOpenInitializesAndReloads(t *testing.T) {
	ctx := t.Context()
	authority, repo := newTestCA(t, ca.Config{CommonName: "Test CA"})

	assert.Contains(t, authority.Subject(), "CN=Test CA")
	assert.Contains(t, string(authority.CACertificatePEM()), "BEGIN CERTIFICATE")

	// Reopening the same repository loads the existing CA instead of
	// minting a new one.
	reopened, err := ca.Open(ctx, repo, ca.Config{})
	require.NoError(t, err)
	assert.Equal(t, authority.CACertificatePEM(), reopened.CACertificatePEM())
}

func TestOpenWithPassphrase(t *testing.T) {
	ctx := t.Context()
	repo := memory.NewRepository()

	_, err := ca.Open(ctx, repo, ca.Config{Passphrase: "hunter2"})
	require.NoError(t, err)

	// The right passphrase opens; a signing operation proves the key loaded.
	authority, err := ca.Open(ctx, repo, ca.Config{Passphrase: "hunter2"})
	require.NoError(t, err)
	require.NoError(t, authority.Generate(ctx, "web01.example.com", nil))

	_, err = ca.Open(ctx, repo, ca.Config{Passphrase: "wrong"})
	require.Error(t, err)
}

func TestSubmitRequestAndWaiting(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})

	require.NoError(t, authority.SubmitRequest(ctx, "web01.example.com", newCSR(t, "web01.example.com")))

	waiting, err := authority.Waiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"web01.example.com"}, waiting)

	signed, err := authority.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, signed)
}

func TestSubmitRequestRejectsGarbage(t *testing.T) {
	authority, _ := newTestCA(t, ca.Config{})
	err := authority.SubmitRequest(t.Context(), "web01.example.com", []byte("not a csr"))
	require.Error(t, err)
}

func TestSignIssuesAndClearsRequest(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})

	require.NoError(t, authority.SubmitRequest(ctx, "web01.example.com", newCSR(t, "web01.example.com")))
	require.NoError(t, authority.Sign(ctx, "web01.example.com", false))

	signed, err := authority.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"web01.example.com"}, signed)

	waiting, err := authority.Waiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	require.NoError(t, authority.Verify(ctx, "web01.example.com"))
}

func TestSignMissingRequest(t *testing.T) {
	authority, _ := newTestCA(t, ca.Config{})
	err := authority.Sign(t.Context(), "nobody.example.com", false)
	require.ErrorIs(t, err, ca.ErrRequestNotFound)
}

func TestSignAltNamesPolicy(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	csr := newCSR(t, "web01.example.com", "www.example.com", "example.com")

	require.NoError(t, authority.SubmitRequest(ctx, "web01.example.com", csr))

	err := authority.Sign(ctx, "web01.example.com", false)
	require.ErrorIs(t, err, ca.ErrDisallowedAltNames)

	// The request survives the refusal and can be signed once allowed.
	require.NoError(t, authority.Sign(ctx, "web01.example.com", true))

	cred, err := authority.Certificate(ctx, "web01.example.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []string{"web01.example.com", "www.example.com", "example.com"}, cred.SubjectAltNames())
}

func TestGenerate(t *testing.T) {
	ctx := t.Context()
	authority, repo := newTestCA(t, ca.Config{})

	opts := admin.Options{admin.OptDNSAltNames: []string{"www.example.com"}}
	require.NoError(t, authority.Generate(ctx, "web01.example.com", opts))

	cred, err := authority.Certificate(ctx, "web01.example.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []string{"web01.example.com", "www.example.com"}, cred.SubjectAltNames())

	keyPEM, err := repo.Get("key", "web01.example.com")
	require.NoError(t, err)
	assert.Contains(t, string(keyPEM), "PRIVATE KEY")

	err = authority.Generate(ctx, "web01.example.com", nil)
	require.ErrorIs(t, err, ca.ErrAlreadyIssued)
}

func TestVerify(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.Generate(ctx, "web01.example.com", nil))

	t.Run("valid certificate", func(t *testing.T) {
		require.NoError(t, authority.Verify(ctx, "web01.example.com"))
	})

	t.Run("unknown host", func(t *testing.T) {
		err := authority.Verify(ctx, "stranger.example.com")
		var verr *admin.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "certificate not found", verr.Reason)
	})

	t.Run("revoked certificate", func(t *testing.T) {
		require.NoError(t, authority.Revoke(ctx, "web01.example.com"))
		err := authority.Verify(ctx, "web01.example.com")
		var verr *admin.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "certificate revoked", verr.Reason)
	})
}

func TestVerifyExpired(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{TTL: -time.Hour})
	require.NoError(t, authority.Generate(ctx, "old.example.com", nil))

	err := authority.Verify(ctx, "old.example.com")
	var verr *admin.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "certificate has expired", verr.Reason)
}

func TestRevoke(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.Generate(ctx, "web01.example.com", nil))

	require.NoError(t, authority.Revoke(ctx, "web01.example.com"))
	err := authority.Revoke(ctx, "web01.example.com")
	require.ErrorIs(t, err, ca.ErrAlreadyRevoked)

	err = authority.Revoke(ctx, "nobody.example.com")
	require.ErrorIs(t, err, ca.ErrCertNotFound)
}

func TestDestroy(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.Generate(ctx, "web01.example.com", nil))

	require.NoError(t, authority.Destroy(ctx, "web01.example.com"))

	signed, err := authority.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, signed)

	err = authority.Destroy(ctx, "web01.example.com")
	require.ErrorContains(t, err, "could not find any records")
}

func TestDestroyPendingRequest(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.SubmitRequest(ctx, "web01.example.com", newCSR(t, "web01.example.com")))

	require.NoError(t, authority.Destroy(ctx, "web01.example.com"))
	waiting, err := authority.Waiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestPrint(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.Generate(ctx, "web01.example.com", nil))

	text, err := authority.Print(ctx, "web01.example.com")
	require.NoError(t, err)
	assert.Contains(t, text, "CN=web01.example.com")
	assert.Contains(t, text, "Not After")
	assert.Contains(t, text, "BEGIN CERTIFICATE")

	text, err = authority.Print(ctx, "nobody.example.com")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRequestCredential(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})
	require.NoError(t, authority.SubmitRequest(ctx, "web01.example.com", newCSR(t, "web01.example.com", "www.example.com")))

	cred, err := authority.Request(ctx, "web01.example.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []string{"www.example.com"}, cred.SubjectAltNames())

	cred, err = authority.Request(ctx, "nobody.example.com")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

// TestListReportEndToEnd drives the full stack: a real authority behind
// the administrative list command.
func TestListReportEndToEnd(t *testing.T) {
	ctx := t.Context()
	authority, _ := newTestCA(t, ca.Config{})

	require.NoError(t, authority.Generate(ctx, "a", nil))
	require.NoError(t, authority.SubmitRequest(ctx, "b", newCSR(t, "b")))
	require.NoError(t, authority.Generate(ctx, "c", nil))
	require.NoError(t, authority.Revoke(ctx, "c"))

	out := &bytes.Buffer{}
	cmd, err := admin.New(admin.VerbList, admin.AllHosts(), nil, admin.WithOutput(out))
	require.NoError(t, err)
	require.NoError(t, cmd.Apply(ctx, authority))

	assert.Equal(t, "  b\n+ a\n- c (certificate revoked)\n", out.String())
}
