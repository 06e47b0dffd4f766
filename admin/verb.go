package admin

import "fmt"

// Verb is one of the fixed administrative actions.
type Verb string

const (
	VerbDestroy  Verb = "destroy"
	VerbList     Verb = "list"
	VerbRevoke   Verb = "revoke"
	VerbGenerate Verb = "generate"
	VerbSign     Verb = "sign"
	VerbPrint    Verb = "print"
	VerbVerify   Verb = "verify"
)

var verbs = []Verb{
	VerbDestroy,
	VerbList,
	VerbRevoke,
	VerbGenerate,
	VerbSign,
	VerbPrint,
	VerbVerify,
}

// Verbs returns the recognized administrative verbs.
func Verbs() []Verb {
	return append([]Verb(nil), verbs...)
}

// ParseVerb validates a candidate verb against the fixed whitelist.
func ParseVerb(s string) (Verb, error) {
	for _, v := range verbs {
		if Verb(s) == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidVerb)
}

func (v Verb) valid() bool {
	for _, known := range verbs {
		if v == known {
			return true
		}
	}
	return false
}

func (v Verb) String() string {
	return string(v)
}
