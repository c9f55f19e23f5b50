package config

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/soebridge/soe/internal/serialendpoint"
)

// CLI holds the common flag surface shared by all three role binaries
// --host/--port, --sec/--secauto/--pwd,
// --baud/--line/--comport/--namedpipe, --keepalive, --cfgfile,
// --version, --help. Grounded on cmd/direwolf/main.go's pflag.*P
// flag-variable pattern.
type CLI struct {
	FlagSet *pflag.FlagSet

	Host       *string
	Port       *int
	Secure     *bool
	SecureAuto *bool
	Password   *string
	CertFile   *string
	KeyFile    *string
	Baud       *int
	Line       *string
	ComPort    *string
	NamedPipe  *string
	Keepalive  *int
	CfgFile    *string
	Version    *bool
	Help       *bool
}

// NewCLI registers the common flag set on a FlagSet named for the
// calling program (os.Args[0] is the conventional choice).
func NewCLI(name string) *CLI {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	c := &CLI{FlagSet: fs}
	c.Host = fs.StringP("host", "H", "", "Remote/listen host address.")
	c.Port = fs.IntP("port", "P", 9000, "TCP port.")
	c.Secure = fs.Bool("sec", false, "Enable TLS with a user-supplied certificate/key. The peer's certificate is not verified.")
	c.SecureAuto = fs.Bool("secauto", false, "Enable TLS with an ephemeral self-signed certificate. The peer's certificate is not verified.")
	c.Password = fs.StringP("pwd", "p", "", "Shared authentication password.")
	c.CertFile = fs.String("certfile", "", "PEM certificate path (custom TLS mode).")
	c.KeyFile = fs.String("keyfile", "", "PEM key path (custom TLS mode).")
	c.Baud = fs.IntP("baud", "b", DefaultBaud, "Serial baud rate.")
	c.Line = fs.StringP("line", "l", DefaultLineFormat, "Serial line format: databits+parity+stopbits+flow, e.g. 8N1N.")
	c.ComPort = fs.String("comport", "", "Local physical/virtual serial port name.")
	c.NamedPipe = fs.String("namedpipe", "", "Local Windows named pipe name.")
	c.Keepalive = fs.IntP("keepalive", "k", 0, "Keep-alive interval in seconds. 0 selects the role default.")
	c.CfgFile = fs.StringP("cfgfile", "c", "", "Config file path. Overrides the default lookup order.")
	c.Version = fs.BoolP("version", "v", false, "Print version and exit.")
	c.Help = fs.BoolP("help", "h", false, "Display help text and exit.")
	return c
}

// Parse parses args (typically os.Args[1:]).
func (c *CLI) Parse(args []string) error {
	return c.FlagSet.Parse(args)
}

// Resolved is the fully merged configuration: documented default, then
// file value, then explicit CLI override, in that order.
type Resolved struct {
	Host       string
	Port       int
	Secure     bool
	SecureAuto bool
	Password   string
	CertFile   string
	KeyFile    string
	Baud       int
	Line       string
	ComPort    string
	NamedPipe  string
	Keepalive  time.Duration
}

// Resolve layers file on top of defaults (already baked into the flag
// defaults above) and CLI flags (only when explicitly changed by the
// user) on top of that.
func (c *CLI) Resolve(file File, roleKeepaliveDefault time.Duration) Resolved {
	r := Resolved{
		Host:       file.Host,
		Port:       file.Port,
		Secure:     file.Secure,
		SecureAuto: file.SecureAuto,
		Password:   file.Password,
		CertFile:   file.CertFile,
		KeyFile:    file.KeyFile,
		Baud:       file.Baud,
		Line:       file.Line,
		ComPort:    file.ComPort,
		NamedPipe:  file.NamedPipe,
		Keepalive:  file.KeepaliveOrDefault(roleKeepaliveDefault),
	}
	if r.Port == 0 {
		r.Port = *c.Port
	}
	if r.Baud == 0 {
		r.Baud = DefaultBaud
	}
	if r.Line == "" {
		r.Line = DefaultLineFormat
	}

	fs := c.FlagSet
	if fs.Changed("host") {
		r.Host = *c.Host
	}
	if fs.Changed("port") {
		r.Port = *c.Port
	}
	if fs.Changed("sec") {
		r.Secure = *c.Secure
	}
	if fs.Changed("secauto") {
		r.SecureAuto = *c.SecureAuto
	}
	if fs.Changed("pwd") {
		r.Password = *c.Password
	}
	if fs.Changed("certfile") {
		r.CertFile = *c.CertFile
	}
	if fs.Changed("keyfile") {
		r.KeyFile = *c.KeyFile
	}
	if fs.Changed("baud") {
		r.Baud = *c.Baud
	}
	if fs.Changed("line") {
		r.Line = *c.Line
	}
	if fs.Changed("comport") {
		r.ComPort = *c.ComPort
	}
	if fs.Changed("namedpipe") {
		r.NamedPipe = *c.NamedPipe
	}
	if fs.Changed("keepalive") {
		r.Keepalive = time.Duration(*c.Keepalive) * time.Second
	}
	return r
}

// SerialEndpoint resolves which Kind/Config to pass to
// serialendpoint.Open: --namedpipe wins if set, otherwise --comport is
// opened via KindAuto (physical vs. PTY decided by serialendpoint
// itself).
func (r Resolved) SerialEndpoint() (serialendpoint.Kind, serialendpoint.Config, error) {
	dataBits, parity, stop, flow, err := serialendpoint.ParseLineFormat(r.Line)
	if err != nil {
		return 0, serialendpoint.Config{}, err
	}

	if r.NamedPipe != "" {
		return serialendpoint.KindNamedPipe, serialendpoint.Config{
			PortName: r.NamedPipe,
			Baud:     r.Baud,
			DataBits: dataBits,
			Parity:   parity,
			StopBits: stop,
			Flow:     flow,
		}, nil
	}
	return serialendpoint.KindAuto, serialendpoint.Config{
		PortName: r.ComPort,
		Baud:     r.Baud,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stop,
		Flow:     flow,
	}, nil
}
