// Package admin implements the administrative command interface for a
// certificate authority: a single verb (list, sign, revoke, generate,
// print, verify, destroy) applied to a selection of host identifiers,
// translated into calls against an Authority and, for list, reduced into
// an aligned, classified report.
package admin

import "context"

// Options is an open bag of per-invocation settings, passed through to
// verb handlers untouched. Individual handlers read only the keys they
// understand.
type Options map[string]any

// Option keys read by the built-in verb handlers and the authority.
const (
	// OptAllowDNSAltNames permits signing requests that carry DNS
	// subject alternative names.
	OptAllowDNSAltNames = "allow-dns-alt-names"
	// OptDNSAltNames lists DNS subject alternative names to embed when
	// generating a certificate server-side.
	OptDNSAltNames = "dns-alt-names"
)

// Bool reads a boolean option; false when unset or of another type.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// Strings reads a string-slice option; nil when unset or of another type.
func (o Options) Strings(key string) []string {
	s, _ := o[key].([]string)
	return s
}

// Credential is the view of an issued certificate or pending request the
// report formatter needs. Implementations are owned by the authority.
type Credential interface {
	// SubjectAltNames returns the credential's subject alternative names,
	// possibly including the host's own identifier. May be empty.
	SubjectAltNames() []string
}

// Authority is the certificate authority operation set this package
// drives. All mutating operations may fail with arbitrary errors; those
// are handled by the Command.Apply error policy.
type Authority interface {
	// List returns the host identifiers holding issued certificates.
	List(ctx context.Context) ([]string, error)

	// Waiting returns the host identifiers with pending certificate requests.
	Waiting(ctx context.Context) ([]string, error)

	// Verify checks the host's issued certificate against the authority.
	// A certificate that fails verification yields a *VerificationError
	// carrying a human-readable reason.
	Verify(ctx context.Context, host string) error

	// Sign issues a certificate from the host's pending request.
	Sign(ctx context.Context, host string, allowDNSAltNames bool) error

	// Generate creates a key pair for the host and issues a certificate
	// in one step.
	Generate(ctx context.Context, host string, opts Options) error

	// Revoke marks the host's certificate revoked.
	Revoke(ctx context.Context, host string) error

	// Destroy removes all records the authority holds for the host.
	Destroy(ctx context.Context, host string) error

	// Print returns a textual rendering of the host's certificate, or
	// the empty string when the authority holds none.
	Print(ctx context.Context, host string) (string, error)

	// Certificate returns the issued certificate for the host, or nil
	// when there is none.
	Certificate(ctx context.Context, host string) (Credential, error)

	// Request returns the pending certificate request for the host, or
	// nil when there is none.
	Request(ctx context.Context, host string) (Credential, error)
}
