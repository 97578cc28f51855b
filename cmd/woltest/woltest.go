// woltest waits for a Wake-on-LAN magic packet and reports where it came
// from. Use it to check that wakeup reaches a machine.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/PieterD/wol"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		fmt.Fprintf(stderr, "failed: %+v\n", err)
		return 1
	}
	return 0
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "woltest",
		Usage:     "wait for a Wake-on-LAN magic packet",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "iface",
				Aliases: []string{"i"},
				Usage:   "interface to listen on (default: all)",
			},
			&cli.IntSliceFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "UDP port to listen on, repeatable (default: 9)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "give up after this long, 0 waits forever",
			},
			&cli.BoolFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "list the available interfaces",
			},
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("list") {
				return listInterfaces(stdout)
			}
			var ports []int
			for _, p := range cmd.IntSlice("port") {
				ports = append(ports, int(p))
			}
			if d := cmd.Duration("timeout"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			r, err := wol.Wait(ctx, cmd.String("iface"), ports...)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "WOL packet for %s received from %s\n", r.Target, r.From)
			return nil
		},
	}
}

// wakeable reports whether iface has an EUI-48 address a magic packet can
// target and is not a loopback.
func wakeable(iface net.Interface) bool {
	return len(iface.HardwareAddr) == wol.AddressLen && iface.Flags&net.FlagLoopback == 0
}

func listInterfaces(w io.Writer) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return errors.Wrapf(err, "failed to list interfaces")
	}
	width := 0
	for _, iface := range ifaces {
		width = max(width, len(iface.Name))
	}
	for _, iface := range ifaces {
		mark := " "
		if wakeable(iface) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-*s", mark, width, iface.Name)
		if len(iface.HardwareAddr) > 0 {
			fmt.Fprintf(w, " %s", iface.HardwareAddr)
		}
		fmt.Fprintln(w)
		addrs, err := iface.Addrs()
		if err != nil {
			return errors.Wrapf(err, "failed to fetch addresses for interface '%s'", iface.Name)
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			fmt.Fprintf(w, "    %s", ipnet)
			if b := subnetBroadcast(ipnet); b != nil {
				fmt.Fprintf(w, " broadcast %s", b)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w, "* can be woken by a magic packet")
	return nil
}

// subnetBroadcast returns the directed broadcast address of an IPv4 network,
// for use with wakeup --broadcast.
func subnetBroadcast(n *net.IPNet) net.IP {
	ip := n.IP.To4()
	if ip == nil || len(n.Mask) != net.IPv4len {
		return nil
	}
	b := make(net.IP, net.IPv4len)
	for i := range ip {
		b[i] = ip[i] | ^n.Mask[i]
	}
	return b
}
