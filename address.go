// Package wol builds Wake-on-LAN magic packets and broadcasts them on the
// local network.
package wol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AddressLen is the number of octets in a hardware address.
const AddressLen = 6

// HardwareAddress is a 48-bit physical network address.
type HardwareAddress [AddressLen]byte

func (hw HardwareAddress) String() string {
	return net.HardwareAddr(hw[:]).String()
}

// HardwareAddr returns a copy of hw as a net.HardwareAddr.
func (hw HardwareAddress) HardwareAddr() net.HardwareAddr {
	return append(net.HardwareAddr(nil), hw[:]...)
}

// ParseError reports a hardware address string that could not be decoded.
// Index is the offending segment, or -1 when the segment count is wrong.
type ParseError struct {
	Input   string
	Segment string
	Index   int
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to parse hardware address '%s': %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("failed to parse hardware address '%s': segment %d '%s': %s", e.Input, e.Index, e.Segment, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseAddress decodes a colon-separated hardware address such as
// 00:11:22:33:44:55. Each of the six segments holds one or two hex digits.
func ParseAddress(address string) (HardwareAddress, error) {
	var hw HardwareAddress
	s := strings.TrimSpace(address)
	segments := strings.Split(s, ":")
	if len(segments) != AddressLen {
		return hw, &ParseError{
			Input:  address,
			Index:  -1,
			Reason: fmt.Sprintf("wrong segment count: got %d, want %d", len(segments), AddressLen),
		}
	}
	for i, seg := range segments {
		perr := &ParseError{Input: address, Segment: seg, Index: i}
		switch {
		case seg == "":
			perr.Reason = "empty segment"
			return hw, perr
		case len(seg) > 2:
			perr.Reason = "more than 2 hex digits"
			return hw, perr
		}
		v, err := strconv.ParseUint(seg, 16, 8)
		if err != nil {
			perr.Reason = "not a hex octet"
			perr.Err = err
			return hw, perr
		}
		hw[i] = byte(v)
	}
	return hw, nil
}
