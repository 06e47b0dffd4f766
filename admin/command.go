package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// Command is a single administrative action: one verb applied once to a
// target selection with per-invocation options. Commands hold no state
// beyond that single invocation; construct a fresh one per action.
type Command struct {
	verb    Verb
	targets Targets
	opts    Options

	out   io.Writer
	diag  io.Writer
	trace bool
}

// CommandOption customizes a Command.
type CommandOption func(*Command)

// WithOutput redirects report and per-host output (default os.Stdout).
func WithOutput(w io.Writer) CommandOption {
	return func(c *Command) { c.out = w }
}

// WithDiagnostics redirects warnings and suppressed-error summaries
// (default os.Stderr).
func WithDiagnostics(w io.Writer) CommandOption {
	return func(c *Command) { c.diag = w }
}

// WithTrace additionally emits a stack trace on the suppressed-error
// path. Trace mode is explicit configuration, not ambient process state.
func WithTrace(enabled bool) CommandOption {
	return func(c *Command) { c.trace = enabled }
}

// New constructs a Command. The verb is checked against the fixed
// whitelist here, before Apply can ever run.
func New(verb Verb, targets Targets, opts Options, copts ...CommandOption) (*Command, error) {
	if !verb.valid() {
		return nil, fmt.Errorf("%q: %w", verb, ErrInvalidVerb)
	}
	c := &Command{
		verb:    verb,
		targets: targets,
		opts:    opts,
		out:     os.Stdout,
		diag:    os.Stderr,
	}
	for _, opt := range copts {
		opt(c)
	}
	return c, nil
}

// Apply executes the configured verb against the authority.
//
// Error policy: an *InterfaceError (semantically invalid request) always
// propagates. Any other failure during dispatch is reported once on the
// diagnostic writer as "Could not call <verb>: <message>" and suppressed;
// a failure partway through a multi-host loop stops the remaining hosts
// and surfaces as that one aggregate line.
func (c *Command) Apply(ctx context.Context, authority Authority) error {
	if c.targets.IsUnset() && c.verb != VerbList {
		return fmt.Errorf("%w: you must specify the hosts to apply to; valid values are a host list, all, or signed", ErrInvalidTargets)
	}

	var err error
	switch c.verb {
	case VerbGenerate:
		err = c.generate(ctx, authority)
	case VerbSign:
		err = c.sign(ctx, authority)
	case VerbPrint:
		err = c.print(ctx, authority)
	case VerbList:
		err = c.list(ctx, authority)
	case VerbDestroy, VerbRevoke, VerbVerify:
		err = c.eachHost(ctx, authority)
	default:
		return fmt.Errorf("%q: %w", c.verb, ErrInvalidVerb)
	}
	if err == nil {
		return nil
	}

	var ierr *InterfaceError
	if errors.As(err, &ierr) {
		return err
	}

	fmt.Fprintf(c.diag, "Could not call %s: %v\n", c.verb, err)
	if c.trace {
		fmt.Fprintf(c.diag, "%+v\n", withStack(err))
	}
	return nil
}

// withStack returns err carrying a call stack, reusing one already
// recorded lower in the chain when present.
func withStack(err error) error {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// generate creates keys and certificates for explicitly named hosts.
// Applying it to a sentinel selection is refused outright: enumeration is
// mandatory for an action that mints key material.
func (c *Command) generate(ctx context.Context, authority Authority) error {
	if c.targets.IsAll() || c.targets.IsSigned() {
		return interfaceErrorf("it makes no sense to generate all hosts; you must specify a list")
	}
	for _, host := range c.targets.Hosts() {
		if err := authority.Generate(ctx, host, c.opts); err != nil {
			return err
		}
	}
	return nil
}

// sign issues certificates from pending requests. A sentinel selection
// resolves to the authority's waiting list; signing with nothing pending
// is an error, not a silent success.
func (c *Command) sign(ctx context.Context, authority Authority) error {
	hosts := c.targets.Hosts()
	if c.targets.IsAll() || c.targets.IsSigned() {
		var err error
		hosts, err = authority.Waiting(ctx)
		if err != nil {
			return err
		}
	}
	if len(hosts) == 0 {
		return interfaceErrorf("no waiting certificate requests to sign")
	}
	for _, host := range hosts {
		if err := authority.Sign(ctx, host, c.opts.Bool(OptAllowDNSAltNames)); err != nil {
			return err
		}
	}
	return nil
}

// print writes each host's certificate text to the output writer. A
// missing certificate is a per-host warning, not a failure.
func (c *Command) print(ctx context.Context, authority Authority) error {
	hosts, err := c.resolveKnown(ctx, authority)
	if err != nil {
		return err
	}
	for _, host := range hosts {
		text, err := authority.Print(ctx, host)
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Fprintf(c.diag, "could not find certificate for %s\n", host)
			continue
		}
		fmt.Fprintln(c.out, text)
	}
	return nil
}

// eachHost is the generic dispatch path for destroy, revoke, and verify:
// the corresponding authority operation applied to each selected host in
// order, with no transactional grouping across hosts.
func (c *Command) eachHost(ctx context.Context, authority Authority) error {
	hosts, err := c.resolveKnown(ctx, authority)
	if err != nil {
		return err
	}
	for _, host := range hosts {
		switch c.verb {
		case VerbDestroy:
			err = authority.Destroy(ctx, host)
		case VerbRevoke:
			err = authority.Revoke(ctx, host)
		case VerbVerify:
			err = authority.Verify(ctx, host)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveKnown maps a sentinel selection to the authority's known-host
// list (its signed hosts) and an explicit selection to itself.
func (c *Command) resolveKnown(ctx context.Context, authority Authority) ([]string, error) {
	if c.targets.IsAll() || c.targets.IsSigned() {
		return authority.List(ctx)
	}
	return c.targets.Hosts(), nil
}
