package wol

import (
	"bytes"
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"gopkg.in/tomb.v2"
)

type Received struct {
	From   net.Addr
	Dst    net.IP
	Port   int
	Target HardwareAddress
}

// Wait listens on the given UDP ports (DefaultPort if none) until a magic
// packet arrives. With a non-empty ifaceName, only datagrams received on that
// interface count, and the packet must target the interface's own hardware
// address.
func Wait(ctx context.Context, ifaceName string, ports ...int) (Received, error) {
	if len(ports) == 0 {
		ports = []int{DefaultPort}
	}
	var f filter
	if ifaceName != "" {
		iface, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return Received{}, errors.Wrapf(err, "failed to find interface '%s'", ifaceName)
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return Received{}, errors.Wrapf(err, "failed to get addresses for interface '%s'", ifaceName)
		}
		if len(addrs) == 0 {
			return Received{}, errors.Errorf("interface '%s' has no addresses", ifaceName)
		}
		f.ifIndex = iface.Index
		if len(iface.HardwareAddr) == AddressLen {
			f.matchTarget = true
			copy(f.target[:], iface.HardwareAddr)
		}
	}

	t, ctx := tomb.WithContext(ctx)
	results := make(chan Received, len(ports))
	for _, port := range ports {
		t.Go(func() error {
			r, err := wait(ctx, t, port, f)
			if err == nil {
				results <- r
				return errPacketFound
			}
			return err
		})
	}
	err := t.Wait()
	close(results)
	if err == errPacketFound {
		r, ok := <-results
		if !ok {
			return Received{}, errors.Errorf("no result in response")
		}
		return r, nil
	}
	if err != nil {
		return Received{}, errors.Wrapf(err, "failed to wait for packet")
	}
	return Received{}, errors.Errorf("invalid response from wait process")
}

var errPacketFound = errors.New("packet found")

// Filtering by interface depends on the receiving interface index.
var enableControlMessages = func(pc *ipv4.PacketConn) error {
	return pc.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true)
}

type filter struct {
	ifIndex     int
	matchTarget bool
	target      HardwareAddress
}

func wait(ctx context.Context, t *tomb.Tomb, port int, f filter) (Received, error) {
	listener := &net.ListenConfig{}
	conn, err := listener.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return Received{}, errors.Wrapf(err, "failed to listen for UDP on port %d", port)
	}
	t.Go(func() error {
		<-t.Dying()
		conn.Close()
		return nil
	})
	pc := ipv4.NewPacketConn(conn)
	if err := enableControlMessages(pc); err != nil && f.ifIndex != 0 {
		return Received{}, errors.Wrapf(err, "failed to enable interface control messages on port %d", port)
	}

	buf := make([]byte, 1500)
	for {
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			return Received{}, errors.Wrapf(err, "failed to read UDP message")
		}
		if f.ifIndex != 0 && (cm == nil || cm.IfIndex != f.ifIndex) {
			continue
		}
		hw, err := DecodeMagicPacket(buf[:n])
		if err != nil {
			continue
		}
		if f.matchTarget && hw != f.target {
			return Received{}, errors.Errorf("Received packet with wrong MAC address %s, expected %s", hw, f.target)
		}
		r := Received{From: src, Port: port, Target: hw}
		if cm != nil {
			r.Dst = bytes.Clone(cm.Dst)
		}
		return r, nil
	}
}
