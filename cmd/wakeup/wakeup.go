// wakeup sends a Wake-on-LAN magic packet for one hardware address.
//
// Usage:
//
//	wakeup [--broadcast IP] [--port N] [--via IP[:PORT]] [--verbose] <hwaddr>
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
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
		fmt.Fprintf(stderr, "failed: %v\n", err)
		return 1
	}
	return 0
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "wakeup",
		Usage:     "send a Wake-on-LAN magic packet",
		ArgsUsage: "<hwaddr>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "broadcast",
				Aliases: []string{"b"},
				Usage:   "broadcast address to send to",
				Value:   wol.DefaultBroadcast.String(),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "UDP port to send to",
				Value:   wol.DefaultPort,
			},
			&cli.StringFlag{
				Name:  "via",
				Usage: "local address to send from",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log socket activity to stderr",
			},
		},
		// run reports errors and picks the exit code.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.Errorf("expected exactly one hardware address, got %d arguments", cmd.Args().Len())
			}
			t, err := transmitter(cmd, stderr)
			if err != nil {
				return err
			}
			hwStr := cmd.Args().First()
			n, err := t.Wake(ctx, hwStr)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "sent magic packet for %s to %s (%d bytes)\n", hwStr, t.Destination(), n)
			return nil
		},
	}
}

func transmitter(cmd *cli.Command, stderr io.Writer) (*wol.Transmitter, error) {
	bcast := net.ParseIP(cmd.String("broadcast"))
	if bcast == nil || bcast.To4() == nil {
		return nil, errors.Errorf("failed to parse IPv4 broadcast address '%s'", cmd.String("broadcast"))
	}
	port := int(cmd.Int("port"))
	if port <= 0 || port > 65535 {
		return nil, errors.Errorf("invalid UDP port %d", port)
	}
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	t := &wol.Transmitter{
		Broadcast: bcast,
		Port:      port,
		Logger:    slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
	if via := cmd.String("via"); via != "" {
		laddr, err := parseLocal(via)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse local address '%s'", via)
		}
		t.Local = laddr
	}
	return t, nil
}

// parseLocal accepts IP or IP:PORT.
func parseLocal(s string) (*net.UDPAddr, error) {
	if ip, err := netip.ParseAddr(s); err == nil {
		return net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, 0)), nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return nil, err
	}
	return net.UDPAddrFromAddrPort(ap), nil
}
