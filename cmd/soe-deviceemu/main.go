// Command soe-deviceemu emulates a simple line-command serial device,
// standing in for real hardware during manual and scripted testing. It
// binds a serial endpoint directly, with no network peer, and dispatches
// whatever command line is typed at it.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soebridge/soe/internal/config"
	"github.com/soebridge/soe/internal/logging"
	"github.com/soebridge/soe/internal/serialendpoint"
)

const helpText = "Commands:\r\n" +
	"  help, ?, h     show this text\r\n" +
	"  show version   print the emulator version\r\n" +
	"  show clock     print the current time\r\n" +
	"  exit           close the connection\r\n"

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.NewCLI("soe-deviceemu")
	if err := cli.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *cli.Version {
		fmt.Println("soe-deviceemu 1.0")
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

	log, err := logging.NewCharmSink(os.Stderr, logging.RotationConfig{})
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
	endpoint, err := serialendpoint.Open(serialKind, serialCfg)
	if err != nil {
		log.Log(logging.LevelError, logging.DirSystem, fmt.Sprintf("open serial endpoint: %v", err))
		return 1
	}
	defer endpoint.Close()
	log.Log(logging.LevelInfo, logging.DirSystem, fmt.Sprintf("device emulator listening on %s", endpoint.Name()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serveLines(ctx, endpoint, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Log(logging.LevelWarn, logging.DirSystem, fmt.Sprintf("session ended: %v", err))
	}
	return 0
}

// serveLines reads one command line at a time off endpoint, dispatches
// it, and writes the response back. Disconnects are detected within one
// ReadAvailable poll interval.
func serveLines(ctx context.Context, endpoint serialendpoint.Endpoint, log *logging.CharmSink) error {
	var line bytes.Buffer
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := endpoint.ReadAvailable(buf)
		if err != nil {
			if errors.Is(err, serialendpoint.ErrDisconnected) {
				log.Log(logging.LevelInfo, logging.DirSystem, "peer disconnected")
				return nil
			}
			return err
		}
		for _, b := range buf[:n] {
			if b == '\n' || b == '\r' {
				if line.Len() == 0 {
					continue
				}
				cmd := strings.TrimSpace(line.String())
				line.Reset()
				if dispatch(endpoint, cmd) {
					return nil
				}
				continue
			}
			line.WriteByte(b)
		}
	}
}

// dispatch executes one command, writing its response to endpoint, and
// reports whether the session should end ("exit").
func dispatch(endpoint serialendpoint.Endpoint, cmd string) (exit bool) {
	switch strings.ToLower(cmd) {
	case "help", "?", "h":
		_ = endpoint.WriteAll([]byte(helpText))
	case "show version":
		_ = endpoint.WriteAll([]byte("emulator 1.0\r\n"))
	case "show clock":
		_ = endpoint.WriteAll([]byte(time.Now().Format(time.RFC1123) + "\r\n"))
	case "exit":
		_ = endpoint.WriteAll([]byte("goodbye\r\n"))
		return true
	case "":
		// ignore blank lines
	default:
		_ = endpoint.WriteAll([]byte(fmt.Sprintf("unknown command: %s\r\n", cmd)))
	}
	return false
}
