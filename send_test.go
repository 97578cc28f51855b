package wol

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenLoopback opens a UDP socket on 127.0.0.1 that stands in for the
// machine being woken.
func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loopbackTransmitter(conn *net.UDPConn) *Transmitter {
	return &Transmitter{
		Broadcast: net.IPv4(127, 0, 0, 1),
		Port:      conn.LocalAddr().(*net.UDPAddr).Port,
	}
}

func readDatagram(t *testing.T, conn *net.UDPConn, timeout time.Duration) ([]byte, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 1500)
	n, _, err := conn.ReadFromUDP(buf)
	return buf[:n], err
}

func TestTransmitterDestination(t *testing.T) {
	var zero Transmitter
	assert.Equal(t, "255.255.255.255:9", zero.Destination().String())

	custom := Transmitter{Broadcast: net.ParseIP("192.168.1.255"), Port: 7}
	assert.Equal(t, "192.168.1.255:7", custom.Destination().String())
}

func TestTransmitterSend(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)

	p := NewMagicPacket(HardwareAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	n, err := tr.Send(context.Background(), p.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 102, n)

	got, err := readDatagram(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, p.Bytes(), got)
}

func TestTransmitterSendAnyLength(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)

	n, err := tr.Send(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := readDatagram(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestTransmitterWake(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)

	n, err := tr.Wake(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, PacketLen, n)

	got, err := readDatagram(t, conn, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, got, PacketLen)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, got[:6])
	for k := 0; k < 16; k++ {
		off := 6 + 6*k
		assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, got[off:off+6])
	}
}

func TestTransmitterWakeParseErrorSendsNothing(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)
	opened := 0
	tr.setBroadcast = func(c syscall.RawConn) error {
		opened++
		return enableBroadcast(c)
	}

	n, err := tr.Wake(context.Background(), "gg:11:22:33:44:55")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, n)
	assert.Zero(t, opened, "no socket may be opened for an unparsable address")

	_, err = readDatagram(t, conn, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestTransmitterBroadcastOptionFailure(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)
	denied := errors.New("permission denied")
	tr.setBroadcast = func(syscall.RawConn) error { return denied }

	n, err := tr.Send(context.Background(), []byte{1, 2, 3})
	var terr *TransmissionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, OpBroadcast, terr.Op)
	assert.ErrorIs(t, err, denied)
	assert.Zero(t, n)

	_, err = readDatagram(t, conn, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestTransmitterBindFailure(t *testing.T) {
	conn := listenLoopback(t)
	tr := loopbackTransmitter(conn)
	// The receiving socket already owns this address.
	tr.Local = conn.LocalAddr().(*net.UDPAddr)

	n, err := tr.Send(context.Background(), []byte{1, 2, 3})
	var terr *TransmissionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, OpListen, terr.Op)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "failed to listen UDP '127.0.0.1:")
}
