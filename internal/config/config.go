// Package config loads the documented defaults for every CLI-tunable
// value, applies a YAML file on top, then lets explicit command-line
// flags override both. Lookup order is:
// `--cfgfile <path>` if given, else `./soe.yaml` in the working
// directory, else `$HOME/.config/soe/soe.yaml`. A missing file at any of
// these locations is not an error — the documented defaults stand.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Role-appropriate defaults used when a value is left unset.
const (
	DefaultKeepaliveServer = 120 * time.Second
	DefaultKeepalivePeer   = 30 * time.Second
	DefaultBaud            = 9600
	DefaultLineFormat      = "8N1N"
)

// File is the subset of soe.yaml this package understands. Every field
// has a documented default applied when the key is absent. Unknown keys
// are ignored rather than rejected.
type File struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Secure     bool   `yaml:"sec"`
	SecureAuto bool   `yaml:"secauto"`
	CertFile   string `yaml:"certfile"`
	KeyFile    string `yaml:"keyfile"`
	Password   string `yaml:"pwd"`
	Baud       int    `yaml:"baud"`
	Line       string `yaml:"line"`
	ComPort    string `yaml:"comport"`
	NamedPipe  string `yaml:"namedpipe"`
	Keepalive  int    `yaml:"keepalive"` // seconds; 0 means "use role default"
}

// Load walks the documented lookup order and returns the first file
// found, parsed. If cfgfile is non-empty it is used unconditionally (a
// missing explicit path IS an error, unlike the implicit locations).
func Load(cfgfile string) (File, error) {
	if cfgfile != "" {
		return loadPath(cfgfile)
	}
	if f, ok, err := tryLoad("./soe.yaml"); ok || err != nil {
		return f, err
	}
	if home, err := os.UserHomeDir(); err == nil {
		if f, ok, err := tryLoad(filepath.Join(home, ".config", "soe", "soe.yaml")); ok || err != nil {
			return f, err
		}
	}
	return File{}, nil
}

func tryLoad(path string) (File, bool, error) {
	if _, err := os.Stat(path); err != nil {
		return File{}, false, nil
	}
	f, err := loadPath(path)
	return f, true, err
}

func loadPath(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// KeepaliveOrDefault returns the file's keepalive setting in seconds, or
// roleDefault if unset.
func (f File) KeepaliveOrDefault(roleDefault time.Duration) time.Duration {
	if f.Keepalive <= 0 {
		return roleDefault
	}
	return time.Duration(f.Keepalive) * time.Second
}
