package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = 32

// Address is a 32-byte account address.
type Address [AddressLength]byte

// ParseAddress parses a hex account address. The 0x prefix is optional and
// short forms such as 0x1 are left-padded with zeros.
func ParseAddress(s string) (Address, error) {
	var a Address

	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" || len(h) > AddressLength*2 {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}

	b, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(a[AddressLength-len(b):], b)
	return a, nil
}

// String returns the long form: 0x followed by 64 lowercase hex characters.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}
