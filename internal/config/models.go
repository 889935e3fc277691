package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

// CurrentVersion is the config file format this build reads and writes.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version    int         `yaml:"version"`
	KeyFile    string      `yaml:"key_file,omitempty"`     // XOR key for radio frames, hex text
	Database   string      `yaml:"database,omitempty"`     // sqlite registry path
	LogLevel   string      `yaml:"log_level,omitempty"`    // debug, info, warn, error
	Verbose    bool        `yaml:"verbose,omitempty"`      // hex dumps while decoding
	Topic      string      `yaml:"topic_prefix,omitempty"` // MQTT topic prefix
	Operations string      `yaml:"operations,omitempty"`   // optional TOML command table
	Serial     *SerialConf `yaml:"serial,omitempty"`
	Feed       *FeedConf   `yaml:"feed,omitempty"`

	// dir is where the file was loaded from; relative paths resolve here.
	dir string
}

// SerialConf describes the 802.15.4 sniffer serial console.
type SerialConf struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// FeedConf describes the websocket feed of decoded records.
type FeedConf struct {
	Listen    string `yaml:"listen"`            // e.g. ":8099"
	Advertise bool   `yaml:"advertise"`         // announce over mDNS
	Service   string `yaml:"service,omitempty"` // mDNS instance name
}

// Defaults
const (
	DefaultDatabase = "pethublocal.db"
	DefaultKeyFile  = "xor.key"
	DefaultLogLevel = "warn"
	DefaultBaud     = 115200
	DefaultListen   = ":8099"
	DefaultService  = "pethublocal"
)

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version:  CurrentVersion,
		KeyFile:  DefaultKeyFile,
		Database: DefaultDatabase,
		LogLevel: DefaultLogLevel,
		Topic:    protocol.DefaultTopicPrefix,
		Serial: &SerialConf{
			Baud: DefaultBaud,
		},
		Feed: &FeedConf{
			Listen:  DefaultListen,
			Service: DefaultService,
		},
	}
}

// applyDefaults fills in anything a partial file left out.
func (c *Config) applyDefaults() {
	def := New()
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Topic == "" {
		c.Topic = def.Topic
	}
	if c.Serial == nil {
		c.Serial = def.Serial
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = DefaultBaud
	}
	if c.Feed == nil {
		c.Feed = def.Feed
	}
	if c.Feed.Listen == "" {
		c.Feed.Listen = DefaultListen
	}
	if c.Feed.Service == "" {
		c.Feed.Service = DefaultService
	}
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Serial != nil && c.Serial.Baud < 0 {
		return fmt.Errorf("invalid serial baud %d", c.Serial.Baud)
	}
	return nil
}

// Resolve returns path made absolute against the config file directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// KeyPath is the resolved XOR key path.
func (c *Config) KeyPath() string { return c.Resolve(c.KeyFile) }

// DatabasePath is the resolved registry path.
func (c *Config) DatabasePath() string { return c.Resolve(c.Database) }

// OperationsPath is the resolved command table path, or "" for the built in one.
func (c *Config) OperationsPath() string { return c.Resolve(c.Operations) }
