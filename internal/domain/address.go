package domain

import (
	"encoding/hex"
	"fmt"
)

// Address identifies an on-chain account, 32 raw bytes.
type Address [32]byte

// ParseAddress decodes a 64-character hex account address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustAddress parses s and panics on failure. Test and config wiring only.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero account.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
