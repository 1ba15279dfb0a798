// Package config loads msgproto settings from a YAML or TOML file.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Zereker/msgproto"
	"github.com/Zereker/msgproto/stream"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the commands read.
type Config struct {
	Server ServerConfig `yaml:"server" toml:"server"`
	Client ClientConfig `yaml:"client" toml:"client"`
	Stream StreamConfig `yaml:"stream" toml:"stream"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// ServerConfig configures the datagram server.
type ServerConfig struct {
	Addr        string   `yaml:"addr" toml:"addr"`
	Greeting    string   `yaml:"greeting" toml:"greeting"`
	Capacity    int      `yaml:"capacity" toml:"capacity"`
	ReadTimeout Duration `yaml:"read_timeout" toml:"read_timeout"`
	MaxRequests int      `yaml:"max_requests" toml:"max_requests"`
}

// ClientConfig configures the datagram client.
type ClientConfig struct {
	Addr     string   `yaml:"addr" toml:"addr"`
	Greeting string   `yaml:"greeting" toml:"greeting"`
	Capacity int      `yaml:"capacity" toml:"capacity"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

// StreamConfig configures the TCP greeting exchange.
type StreamConfig struct {
	Addr     string   `yaml:"addr" toml:"addr"`
	Greeting string   `yaml:"greeting" toml:"greeting"`
	Reply    string   `yaml:"reply" toml:"reply"`
	ReadSize int      `yaml:"read_size" toml:"read_size"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
	MaxConns int      `yaml:"max_conns" toml:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level" toml:"level"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// Default returns the built-in configuration: port 8080 everywhere and
// the reference greetings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        msgproto.DefaultAddr,
			Greeting:    msgproto.DefaultServerGreeting,
			Capacity:    msgproto.DefaultCapacity,
			ReadTimeout: Duration(msgproto.DefaultReadTimeout),
		},
		Client: ClientConfig{
			Addr:     "127.0.0.1:8080",
			Greeting: msgproto.DefaultClientGreeting,
			Capacity: msgproto.DefaultCapacity,
			Timeout:  Duration(msgproto.DefaultReadTimeout),
		},
		Stream: StreamConfig{
			Addr:     ":8080",
			Greeting: stream.DefaultGreeting,
			Reply:    "Hello from client!",
			ReadSize: stream.DefaultReadSize,
			Timeout:  Duration(stream.DefaultTimeout),
			MaxConns: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults. Files ending in .toml are parsed as TOML,
// anything else as YAML.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "config load failed (%s)", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "config parse failed (%s)", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses, sizes and timeouts.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	return c.Stream.Validate()
}

// Validate checks the server section. The CLI calls it again after
// flags override the loaded values.
func (s ServerConfig) Validate() error {
	if err := validateAddr("server.addr", s.Addr); err != nil {
		return err
	}
	if s.Capacity <= 0 {
		return errors.Errorf("server.capacity must be positive, got %d", s.Capacity)
	}
	if len(s.Greeting) >= s.Capacity {
		return errors.Errorf("server.greeting is %d bytes, capacity is %d", len(s.Greeting), s.Capacity)
	}
	if s.ReadTimeout < 0 {
		return errors.New("server.read_timeout must not be negative")
	}
	if s.MaxRequests < 0 {
		return errors.New("server.max_requests must not be negative")
	}
	return nil
}

// Validate checks the client section.
func (c ClientConfig) Validate() error {
	if err := validateAddr("client.addr", c.Addr); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return errors.Errorf("client.capacity must be positive, got %d", c.Capacity)
	}
	if len(c.Greeting) >= c.Capacity {
		return errors.Errorf("client.greeting is %d bytes, capacity is %d", len(c.Greeting), c.Capacity)
	}
	if c.Timeout < 0 {
		return errors.New("client.timeout must not be negative")
	}
	return nil
}

// Validate checks the stream section.
func (s StreamConfig) Validate() error {
	if err := validateAddr("stream.addr", s.Addr); err != nil {
		return err
	}
	if s.Timeout < 0 {
		return errors.New("stream.timeout must not be negative")
	}
	if s.MaxConns < 0 {
		return errors.New("stream.max_conns must not be negative")
	}
	if s.ReadSize <= 0 {
		return errors.Errorf("stream.read_size must be positive, got %d", s.ReadSize)
	}
	return nil
}

func validateAddr(field, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.Errorf("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.Wrapf(err, "%s invalid", field)
	}
	return nil
}
