// Command soe-client dials a soe-server and relays bytes between it and
// the process's own keyboard/screen.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soebridge/soe/internal/codec"
	"github.com/soebridge/soe/internal/config"
	"github.com/soebridge/soe/internal/logging"
	"github.com/soebridge/soe/internal/pump"
	"github.com/soebridge/soe/internal/serialendpoint"
	"github.com/soebridge/soe/internal/session"
	"github.com/soebridge/soe/internal/status"
	"github.com/soebridge/soe/internal/tlstransport"
	"github.com/soebridge/soe/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.NewCLI("soe-client")
	if err := cli.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *cli.Version {
		fmt.Println(version.Client)
		return 0
	}
	if *cli.Help {
		cli.FlagSet.PrintDefaults()
		return 0
	}

	file, err := config.Load(*cli.CfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	resolved := cli.Resolve(file, config.DefaultKeepalivePeer)

	log, err := logging.NewCharmSink(os.Stderr, logging.RotationConfig{
		Dir:         "logs",
		MaxBytes:    5 * 1024 * 1024,
		MaxArchives: 5,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Close()

	endpoint := newStdio()
	defer endpoint.Close()

	// The Client has no local serial line of its own; it reports the
	// line format it wants the Server to use on its serial device.
	_, serialCfg, err := resolved.SerialEndpoint()
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, err.Error())
		return 1
	}

	addr := net.JoinHostPort(resolved.Host, fmt.Sprintf("%d", resolved.Port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("dial %s: %v", addr, err))
		return 1
	}

	wrapped, err := tlstransport.WrapClient(conn, tlstransport.ClientConfig{
		Mode:     tlstransport.ParseMode(resolved.Secure, resolved.SecureAuto),
		CertFile: resolved.CertFile,
		KeyFile:  resolved.KeyFile,
	})
	if err != nil {
		conn.Close()
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("tls handshake: %v", err))
		return 1
	}

	statusBar := status.NewTerminalBar(os.Stderr)
	machine := session.NewMachine(wrapped, session.Config{
		Role:           codec.RoleClient,
		LocalVersion:   version.Client,
		Password:       resolved.Password,
		LocalSerial:    serialCfg,
		KeepaliveLocal: resolved.Keepalive,
		Log:            log,
		Status:         statusBar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	negCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = machine.Negotiate(negCtx)
	cancel()
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("negotiation failed: %v", err))
		return 1
	}
	log.Log(logging.LevelOK, logging.DirSystem, fmt.Sprintf("connected to %s", addr))

	go func() {
		<-ctx.Done()
		machine.SoftDisconnect()
	}()

	go func() {
		if err := machine.RunKeepaliveTicker(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Log(logging.LevelWarn, logging.DirSystem, fmt.Sprintf("keepalive ticker: %v", err))
		}
	}()

	p := pump.New(endpoint, machine, log, log)
	if err := p.Run(ctx); err != nil && !errors.Is(err, session.ErrDisconnected) {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("session ended: %v", err))
		return 1
	}
	log.Log(logging.LevelInfo, logging.DirSystem, "disconnected")
	return 0
}

var _ serialendpoint.Endpoint = (*stdio)(nil)
