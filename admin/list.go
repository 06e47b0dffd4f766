package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Host classification categories for the listing report.
const (
	statusRequest = "request"
	statusSigned  = "signed"
	statusInvalid = "invalid"
)

// categoryOrder is the fixed rendering order. The assembled lines are
// sorted as plain text afterwards, so this order only decides which
// entries exist, not how the final report reads.
var categoryOrder = []string{statusRequest, statusSigned, statusInvalid}

// categoryGlyph is the one-character tag prefixed to each report line.
var categoryGlyph = map[string]string{
	statusRequest: " ",
	statusSigned:  "+",
	statusInvalid: "-",
}

// hostEntry is one classified host: the certificate or request backing
// it (may be nil when the authority has no record) and, for invalid
// hosts, the verification failure message.
type hostEntry struct {
	cred        Credential
	verifyError string
}

// list gathers the authority's signed and pending host sets, classifies
// the selected host universe, and writes one aligned report to the
// output writer. Individual verification failures feed the report; they
// are not errors.
func (c *Command) list(ctx context.Context, authority Authority) error {
	signed, err := authority.List(ctx)
	if err != nil {
		return err
	}
	pending, err := authority.Waiting(ctx)
	if err != nil {
		return err
	}

	var hosts []string
	switch {
	case c.targets.IsAll():
		hosts = append(append([]string(nil), signed...), pending...)
	case c.targets.IsSigned():
		hosts = signed
	case c.targets.IsUnset():
		hosts = pending
	default:
		hosts = c.targets.Hosts()
	}
	if len(hosts) == 0 {
		return nil
	}

	classified, err := c.classify(ctx, authority, hosts, signed, pending)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, renderReport(classified))
	return nil
}

// classify partitions the deduplicated, alphabetically sorted host
// universe into request / signed / invalid. Hosts with a pending request
// are requests by definition and skip verification; everything else is
// verified against the authority, with failures captured as invalid.
func (c *Command) classify(ctx context.Context, authority Authority, hosts, signed, pending []string) (map[string]map[string]hostEntry, error) {
	universe := append([]string(nil), hosts...)
	slices.Sort(universe)
	universe = slices.Compact(universe)

	classified := map[string]map[string]hostEntry{
		statusRequest: {},
		statusSigned:  {},
		statusInvalid: {},
	}

	for _, host := range universe {
		if slices.Contains(pending, host) {
			req, err := authority.Request(ctx, host)
			if err != nil {
				return nil, err
			}
			classified[statusRequest][host] = hostEntry{cred: req}
			continue
		}

		if err := authority.Verify(ctx, host); err != nil {
			var verr *VerificationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			cert, err := authority.Certificate(ctx, host)
			if err != nil {
				return nil, err
			}
			classified[statusInvalid][host] = hostEntry{cred: cert, verifyError: verr.Error()}
			continue
		}

		if slices.Contains(signed, host) {
			cert, err := authority.Certificate(ctx, host)
			if err != nil {
				return nil, err
			}
			classified[statusSigned][host] = hostEntry{cred: cert}
			continue
		}

		// Verifiable but not in the signed set: fall back to the request
		// classification rather than inventing a fourth category.
		req, err := authority.Request(ctx, host)
		if err != nil {
			return nil, err
		}
		classified[statusRequest][host] = hostEntry{cred: req}
	}

	return classified, nil
}

// renderReport formats every classified entry and assembles the final
// report: all lines from all non-empty categories, sorted as plain text
// (glyph included), joined with newlines. The sort is over formatted
// lines, not host identifiers; the report ordering is part of the
// observable output contract.
func renderReport(classified map[string]map[string]hostEntry) string {
	width := 0
	for _, entries := range classified {
		for host := range entries {
			if len(host) > width {
				width = len(host)
			}
		}
	}

	var lines []string
	for _, category := range categoryOrder {
		entries := classified[category]
		if len(entries) == 0 {
			continue
		}
		for host, entry := range entries {
			lines = append(lines, formatHostLine(host, category, entry, width))
		}
	}

	slices.Sort(lines)
	return strings.Join(lines, "\n")
}

// formatHostLine renders one classified host: glyph, host identifier
// left-justified to the report width, then the optional alt-names and
// verification-error segments, space-joined with absent segments omitted.
func formatHostLine(host, category string, entry hostEntry, width int) string {
	parts := []string{categoryGlyph[category], fmt.Sprintf("%-*s", width, host)}

	if entry.cred != nil {
		if alt := altNamesExcluding(entry.cred.SubjectAltNames(), host); len(alt) > 0 {
			parts = append(parts, "(alt names: "+strings.Join(alt, ", ")+")")
		}
	}
	if entry.verifyError != "" {
		parts = append(parts, "("+entry.verifyError+")")
	}

	return strings.Join(parts, " ")
}

// altNamesExcluding drops the host's own identifier from its alt names,
// preserving the remaining order.
func altNamesExcluding(names []string, host string) []string {
	var out []string
	for _, name := range names {
		if name != host {
			out = append(out, name)
		}
	}
	return out
}
