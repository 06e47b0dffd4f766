package admin

import "fmt"

type targetKind int

const (
	targetUnset targetKind = iota
	targetAll
	targetSigned
	targetHosts
)

// Targets selects the hosts an administrative action applies to: an
// explicit ordered host list, every host the authority knows, every
// signed host, or unset (verb-dependent, typically the pending set).
type Targets struct {
	kind  targetKind
	hosts []string
}

// AllHosts selects every host the authority knows.
func AllHosts() Targets {
	return Targets{kind: targetAll}
}

// SignedHosts selects every host holding an issued certificate.
func SignedHosts() Targets {
	return Targets{kind: targetSigned}
}

// HostList selects the named hosts, preserving order. An empty list is
// normalized to the unset selection, never stored as empty.
func HostList(hosts ...string) Targets {
	if len(hosts) == 0 {
		return Targets{}
	}
	return Targets{kind: targetHosts, hosts: append([]string(nil), hosts...)}
}

// TargetsFromFlags builds a target selection from CLI-shaped input. The
// two sentinel flags and an explicit host list are mutually exclusive.
func TargetsFromFlags(all, signed bool, hosts []string) (Targets, error) {
	switch {
	case all && signed:
		return Targets{}, fmt.Errorf("%w: all and signed are mutually exclusive", ErrInvalidTargets)
	case (all || signed) && len(hosts) > 0:
		return Targets{}, fmt.Errorf("%w: cannot combine a host list with a sentinel selection", ErrInvalidTargets)
	case all:
		return AllHosts(), nil
	case signed:
		return SignedHosts(), nil
	default:
		return HostList(hosts...), nil
	}
}

// IsUnset reports whether no selection was made.
func (t Targets) IsUnset() bool { return t.kind == targetUnset }

// IsAll reports whether the selection is the all-known-hosts sentinel.
func (t Targets) IsAll() bool { return t.kind == targetAll }

// IsSigned reports whether the selection is the all-signed-hosts sentinel.
func (t Targets) IsSigned() bool { return t.kind == targetSigned }

// Hosts returns the explicit host list, nil for sentinel or unset selections.
func (t Targets) Hosts() []string {
	return append([]string(nil), t.hosts...)
}
