package admin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVerb is returned when a candidate verb is outside the
	// fixed set of administrative verbs.
	ErrInvalidVerb = errors.New("unknown administrative verb")

	// ErrInvalidTargets is returned when a target selection is neither a
	// host list nor one of the all/signed sentinels, or when a verb that
	// requires targets is applied without any.
	ErrInvalidTargets = errors.New("invalid target selection")
)

// InterfaceError marks an administrative request that is semantically
// invalid for its verb (e.g. generate applied to all hosts). Unlike
// operational failures, it is never suppressed by Apply's error policy.
type InterfaceError struct {
	msg string
}

func interfaceErrorf(format string, args ...any) *InterfaceError {
	return &InterfaceError{msg: fmt.Sprintf(format, args...)}
}

func (e *InterfaceError) Error() string {
	return e.msg
}

// VerificationError reports a certificate that failed authority
// verification. Its message is the human-readable reason shown in
// listing reports.
type VerificationError struct {
	Host   string
	Reason string
}

func (e *VerificationError) Error() string {
	return e.Reason
}
