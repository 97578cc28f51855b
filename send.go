package wol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// DefaultPort is the discard port most network cards listen on for magic
// packets.
const DefaultPort = 9

// DefaultBroadcast is the limited broadcast address.
var DefaultBroadcast = net.IPv4bcast

const (
	OpListen    = "listen"
	OpBroadcast = "broadcast"
	OpSend      = "send"
)

// TransmissionError reports a failed attempt to put a datagram on the wire.
type TransmissionError struct {
	Op   string
	Addr net.Addr
	Err  error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("failed to %s UDP '%s': %v", e.Op, e.Addr, e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }

// Transmitter sends datagrams to a broadcast address. The zero value sends to
// 255.255.255.255:9 from an ephemeral port.
type Transmitter struct {
	// Broadcast is the destination address, DefaultBroadcast if nil.
	Broadcast net.IP
	// Port is the destination port, DefaultPort if zero.
	Port int
	// Local is the address the socket binds to; nil lets the system choose.
	Local *net.UDPAddr
	// Logger receives debug output; nil discards it.
	Logger *slog.Logger

	setBroadcast func(syscall.RawConn) error
}

func (t *Transmitter) Destination() *net.UDPAddr {
	addr := &net.UDPAddr{IP: t.Broadcast, Port: t.Port}
	if addr.IP == nil {
		addr.IP = DefaultBroadcast
	}
	if addr.Port == 0 {
		addr.Port = DefaultPort
	}
	return addr
}

func (t *Transmitter) localAddr() string {
	if t.Local == nil {
		return "0.0.0.0:0"
	}
	return t.Local.String()
}

func (t *Transmitter) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return t.Logger
}

// Send writes payload as a single datagram to the broadcast destination and
// returns the number of bytes the transport accepted. The socket lives only
// for this call.
func (t *Transmitter) Send(ctx context.Context, payload []byte) (int, error) {
	dst := t.Destination()
	log := t.logger().With("dst", dst.String())

	setBroadcast := t.setBroadcast
	if setBroadcast == nil {
		setBroadcast = enableBroadcast
	}
	var optErr error
	lc := &net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			optErr = setBroadcast(c)
			return optErr
		},
	}
	conn, err := lc.ListenPacket(ctx, "udp4", t.localAddr())
	if err != nil {
		if optErr != nil {
			return 0, &TransmissionError{Op: OpBroadcast, Addr: dst, Err: optErr}
		}
		return 0, &TransmissionError{Op: OpListen, Addr: dst, Err: err}
	}
	defer conn.Close()
	log.Debug("socket open", "local", conn.LocalAddr().String())

	n, err := conn.WriteTo(payload, dst)
	if err != nil {
		return n, &TransmissionError{Op: OpSend, Addr: dst, Err: err}
	}
	log.Debug("datagram sent", "bytes", n)
	return n, nil
}

// Wake parses hwStr, builds its magic packet and sends it. Nothing is sent
// when the address does not parse.
func (t *Transmitter) Wake(ctx context.Context, hwStr string) (int, error) {
	packet, err := BuildMagicPacket(hwStr)
	if err != nil {
		return 0, err
	}
	n, err := t.Send(ctx, packet.Bytes())
	if err != nil {
		return n, err
	}
	if n != len(packet) {
		return n, errors.Errorf("invalid number of bytes written %d", n)
	}
	t.logger().Info("magic packet sent", "target", packet.Target().String(), "dst", t.Destination().String(), "bytes", n)
	return n, nil
}
