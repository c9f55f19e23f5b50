// Command soe-server listens for Bridge/Client connections and relays
// bytes between them and a local serial endpoint.
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
	cli := config.NewCLI("soe-server")
	if err := cli.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *cli.Version {
		fmt.Println(version.Server)
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
	resolved := cli.Resolve(file, config.DefaultKeepaliveServer)

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

	serialKind, serialCfg, err := resolved.SerialEndpoint()
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, err.Error())
		return 1
	}

	addr := net.JoinHostPort(resolved.Host, fmt.Sprintf("%d", resolved.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("listen on %s: %v", addr, err))
		return 1
	}
	defer ln.Close()
	log.Log(logging.LevelInfo, logging.DirSystem, fmt.Sprintf("listening on %s", addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tlsCfg := tlstransport.ServerConfig{
		Mode:     tlstransport.ParseMode(resolved.Secure, resolved.SecureAuto),
		CertFile: resolved.CertFile,
		KeyFile:  resolved.KeyFile,
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return 0
			}
			log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("accept: %v", acceptErr))
			continue
		}
		handleConn(ctx, conn, tlsCfg, serialKind, serialCfg, resolved, log)
	}
}

func handleConn(ctx context.Context, conn net.Conn, tlsCfg tlstransport.ServerConfig,
	serialKind serialendpoint.Kind, serialEndpointCfg serialendpoint.Config,
	resolved config.Resolved, log *logging.CharmSink) {
	defer conn.Close()

	wrapped, err := tlstransport.WrapServer(conn, tlsCfg)
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("tls handshake with %s: %v", conn.RemoteAddr(), err))
		return
	}

	endpoint, err := serialendpoint.Open(serialKind, serialEndpointCfg)
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("open serial endpoint: %v", err))
		return
	}
	defer endpoint.Close()

	statusBar := status.NewTerminalBar(os.Stdout)

	machine := session.NewMachine(wrapped, session.Config{
		Role:           codec.RoleServer,
		LocalVersion:   version.Server,
		Password:       resolved.Password,
		LocalSerial:    serialEndpointCfg,
		KeepaliveLocal: resolved.Keepalive,
		Log:            log,
		Status:         statusBar,
	})

	negCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = machine.Negotiate(negCtx)
	cancel()
	if err != nil {
		log.Log(logging.LevelWarn, logging.DirSystem, fmt.Sprintf("negotiation with %s failed: %v", conn.RemoteAddr(), err))
		return
	}
	log.Log(logging.LevelOK, logging.DirSystem, fmt.Sprintf("%s authorized", conn.RemoteAddr()))

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		select {
		case <-ctx.Done():
			machine.SoftDisconnect()
		case <-runCtx.Done():
		}
	}()
	go func() {
		if err := machine.RunKeepaliveTicker(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Log(logging.LevelWarn, logging.DirSystem, fmt.Sprintf("keepalive ticker: %v", err))
		}
	}()

	p := pump.New(endpoint, machine, log, log)
	if err := p.Run(runCtx); err != nil && !errors.Is(err, session.ErrDisconnected) {
		log.Log(logging.LevelWarn, logging.DirSystem, fmt.Sprintf("session with %s ended: %v", conn.RemoteAddr(), err))
		return
	}
	log.Log(logging.LevelInfo, logging.DirSystem, fmt.Sprintf("%s disconnected", conn.RemoteAddr()))
}
