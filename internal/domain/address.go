package domain

import "strings"

// Address is a lowercase 0x-prefixed Ethereum address.
// Every address entering the system goes through NormalizeAddress so that
// map keys, database columns, and comparisons all agree on case.
type Address string

// NormalizeAddress lowercases an address and ensures the 0x prefix.
func NormalizeAddress(s string) Address {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return Address(s)
}

// String returns the normalized hex form.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || a == "0x0000000000000000000000000000000000000000"
}
