package util

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeHost canonicalizes an operator-supplied host identifier:
// Unicode NFKC normalization, lowercasing, and surrounding-whitespace
// removal. Lookups and stored record names always use this form.
func NormalizeHost(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

// NormalizeHosts normalizes every element, preserving order.
func NormalizeHosts(hosts []string) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = NormalizeHost(h)
	}
	return out
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
