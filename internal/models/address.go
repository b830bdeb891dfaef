package models

import "strings"

// Address identifies a participant on the settlement ledger.
// Canonical form is lowercase hex with a 0x prefix.
type Address string

// ZeroAddress is the null target; transfers and setters reject it.
const ZeroAddress Address = ""

func (a Address) IsZero() bool {
	trimmed := strings.TrimSpace(string(a))
	return trimmed == "" || trimmed == "0x0" || trimmed == "0x0000000000000000000000000000000000000000"
}

// Normalize returns the canonical lowercase form.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

func (a Address) Equal(b Address) bool {
	return a.Normalize() == b.Normalize()
}
