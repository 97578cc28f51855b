package wol

import (
	"bytes"

	"github.com/pkg/errors"
)

const (
	// SyncLen is the number of 0xFF bytes that open a magic packet.
	SyncLen = 6
	// Repetitions is how often the target address follows the sync stream.
	Repetitions = 16
	// PacketLen is the size of a magic packet in bytes.
	PacketLen = SyncLen + Repetitions*AddressLen
)

var syncStream = bytes.Repeat([]byte{0xFF}, SyncLen)

// ErrNotMagicPacket is returned by DecodeMagicPacket for payloads that do not
// carry a magic packet.
var ErrNotMagicPacket = errors.New("not a magic packet")

// MagicPacket is the Wake-on-LAN payload: six 0xFF bytes followed by sixteen
// copies of the target hardware address.
type MagicPacket [PacketLen]byte

func NewMagicPacket(hw HardwareAddress) MagicPacket {
	var p MagicPacket
	copy(p[:], syncStream)
	for i := 0; i < Repetitions; i++ {
		copy(p[SyncLen+i*AddressLen:], hw[:])
	}
	return p
}

// BuildMagicPacket parses address and assembles its magic packet.
func BuildMagicPacket(address string) (MagicPacket, error) {
	hw, err := ParseAddress(address)
	if err != nil {
		return MagicPacket{}, err
	}
	return NewMagicPacket(hw), nil
}

func (p MagicPacket) Bytes() []byte {
	return p[:]
}

func (p MagicPacket) Target() HardwareAddress {
	var hw HardwareAddress
	copy(hw[:], p[SyncLen:])
	return hw
}

// DecodeMagicPacket extracts the target address from a datagram payload. The
// sync stream may start anywhere in the payload.
func DecodeMagicPacket(payload []byte) (HardwareAddress, error) {
	var hw HardwareAddress
	if len(payload) < PacketLen {
		return hw, errors.Wrapf(ErrNotMagicPacket, "payload too short (%d bytes)", len(payload))
	}
	for off := 0; off+PacketLen <= len(payload); off++ {
		i := bytes.Index(payload[off:len(payload)-PacketLen+SyncLen], syncStream)
		if i < 0 {
			break
		}
		off += i
		body := payload[off+SyncLen : off+PacketLen]
		if repeated(body) {
			copy(hw[:], body)
			return hw, nil
		}
	}
	return hw, errors.Wrap(ErrNotMagicPacket, "no sync stream followed by 16 repetitions")
}

func repeated(body []byte) bool {
	first := body[:AddressLen]
	for body = body[AddressLen:]; len(body) > 0; body = body[AddressLen:] {
		if !bytes.Equal(body[:AddressLen], first) {
			return false
		}
	}
	return true
}
