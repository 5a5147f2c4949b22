// SPDX-FileCopyrightText: 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"fmt"
	"regexp"
	"strings"
)

// addressRegexp matches local@domain with an optional /resource suffix.
var addressRegexp = regexp.MustCompile(`^([^@/\s]+)@([^@/\s]+)(/([^\s]+))?$`)

// Address identifies an agent on the message network, e.g., "alice@example.org" or "alice@example.org/laptop".
type Address string

// ParseAddress checks an address' format. The resource part is optional.
func ParseAddress(s string) (Address, error) {
	if !addressRegexp.MatchString(s) {
		return "", fmt.Errorf("address %q does not match local@domain[/resource]", s)
	}
	return Address(s), nil
}

// MustParseAddress is like ParseAddress, but panics on an error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsZero checks if this Address is unset.
func (addr Address) IsZero() bool {
	return addr == ""
}

// Local part, in front of the "@".
func (addr Address) Local() string {
	if m := addressRegexp.FindStringSubmatch(string(addr)); m != nil {
		return m[1]
	}
	return ""
}

// Domain part, between the "@" and an optional resource.
func (addr Address) Domain() string {
	if m := addressRegexp.FindStringSubmatch(string(addr)); m != nil {
		return m[2]
	}
	return ""
}

// Resource part, or an empty string.
func (addr Address) Resource() string {
	if m := addressRegexp.FindStringSubmatch(string(addr)); m != nil {
		return m[4]
	}
	return ""
}

// Bare returns this Address without its resource part.
func (addr Address) Bare() Address {
	if i := strings.IndexByte(string(addr), '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// SameAgent checks if two Addresses point to the same agent, ignoring their resources.
func (addr Address) SameAgent(other Address) bool {
	return addr.Bare() == other.Bare()
}

func (addr Address) String() string {
	return string(addr)
}
