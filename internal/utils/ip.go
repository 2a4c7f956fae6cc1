package utils

import (
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

var (
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	ErrInvalidMask    = errors.New("invalid netmask")
	// ErrWildcardMask is returned for dotted masks that are not contiguous,
	// e.g. the Junos wildcard form 10.0.0.0/0.0.0.255.
	ErrWildcardMask = errors.New("wildcard netmask")
)

// ParseIPv4 converts a dotted-quad IPv4 address to its integer form.
func ParseIPv4(s string) (uint32, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

// FormatIPv4 converts an integer IPv4 address back to dotted-quad notation.
func FormatIPv4(v uint32) string {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}).String()
}

// MaskFromLength returns the integer netmask for a prefix length in [0, 32].
func MaskFromLength(length int) uint32 {
	if length <= 0 {
		return 0
	}
	if length >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << (32 - length)
}

// NetmaskFromLength returns the dotted netmask for a prefix length, e.g. 24 -> 255.255.255.0.
func NetmaskFromLength(length int) string {
	return FormatIPv4(MaskFromLength(length))
}

// MaskLengthFromNetmask returns the prefix length of a contiguous dotted netmask.
func MaskLengthFromNetmask(netmask string) (int, error) {
	v, ok := ParseIPv4(netmask)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMask, netmask)
	}
	length := bits.LeadingZeros32(^v)
	if MaskFromLength(length) != v {
		return 0, fmt.Errorf("%w: %q", ErrWildcardMask, netmask)
	}
	return length, nil
}

// ParsePrefix accepts "a.b.c.d", "a.b.c.d/len" and "a.b.c.d/m.m.m.m" and returns
// the address (host bits untouched) and prefix length.
func ParsePrefix(s string) (uint32, int, error) {
	s = strings.TrimSpace(s)
	addrPart, maskPart, hasMask := strings.Cut(s, "/")
	ip, ok := ParseIPv4(addrPart)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addrPart)
	}
	if !hasMask {
		return ip, 32, nil
	}
	if strings.Contains(maskPart, ".") {
		length, err := MaskLengthFromNetmask(maskPart)
		if err != nil {
			return ip, 0, err
		}
		return ip, length, nil
	}
	length, err := strconv.Atoi(maskPart)
	if err != nil || length < 0 || length > 32 {
		return ip, 0, fmt.Errorf("%w: /%s", ErrInvalidMask, maskPart)
	}
	return ip, length, nil
}

// Network clears the host bits of ip.
func Network(ip uint32, length int) uint32 {
	return ip & MaskFromLength(length)
}

// Broadcast sets the host bits of ip.
func Broadcast(ip uint32, length int) uint32 {
	return ip | ^MaskFromLength(length)
}

// CIDRSize returns the number of addresses in a network of the given prefix length.
func CIDRSize(length int) uint64 {
	if length < 0 {
		length = 0
	}
	if length > 32 {
		length = 32
	}
	return 1 << (32 - length)
}
