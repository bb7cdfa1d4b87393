// Package config loads the tripwire service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	KindWebSocket = "websocket"
	KindRedis     = "redis"
	KindNATS      = "nats"
	KindFile      = "file"
)

// DefaultEndpoint is the sensor hub's WebSocket port on the local host.
const DefaultEndpoint = "ws://localhost:6789"

// Config is the service configuration as read from tripwire.yaml.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Expiry    ExpiryConfig    `yaml:"expiry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TransportConfig selects the sensor feed and how to reach it.
type TransportConfig struct {
	Kind       string        `yaml:"kind" validate:"required,oneof=websocket redis nats file"`
	Endpoint   string        `yaml:"endpoint"`
	Origin     string        `yaml:"origin" validate:"omitempty,url"`
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"gte=0"`
	Inbound    string        `yaml:"inbound"`
	Outbound   string        `yaml:"outbound"`
}

// ExpiryConfig holds the live and diagnostic expiry windows.
type ExpiryConfig struct {
	Live       time.Duration `yaml:"live" validate:"gt=0"`
	Diagnostic time.Duration `yaml:"diagnostic" validate:"gt=0"`
}

// MetricsConfig configures the HTTP listener for /metrics and /snapshot.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

var validate = newValidator()

// newValidator reports fields by their yaml key, so failures read as
// "Config.transport.kind" rather than Go field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration used when no file is given. It is
// valid as returned.
func Default() *Config {
	cfg := &Config{
		Transport: TransportConfig{
			Kind:     KindWebSocket,
			Endpoint: DefaultEndpoint,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates raw YAML.
func Parse(raw []byte) (*Config, error) {
	cfg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads and defaults the file at path without validating it, so that
// callers can apply overrides first. Call Validate before use.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode decodes and defaults raw YAML without validating it.
func Decode(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = KindWebSocket
	}
	if c.Transport.Kind == KindWebSocket && c.Transport.Origin == "" {
		c.Transport.Origin = "http://localhost/"
	}
	if c.Transport.MaxBackoff == 0 {
		c.Transport.MaxBackoff = 61 * time.Second
	}
	if c.Expiry.Live == 0 {
		c.Expiry.Live = 10 * time.Second
	}
	if c.Expiry.Diagnostic == 0 {
		c.Expiry.Diagnostic = 5 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

// Validate checks c and names the offending yaml key on failure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return err
	}

	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		return fmt.Errorf("metrics.addr must be host:port, got %q", c.Metrics.Addr)
	}

	t := c.Transport
	switch t.Kind {
	case KindWebSocket:
		if t.Endpoint == "" {
			return fmt.Errorf("transport.endpoint is required")
		}
		u, err := url.Parse(t.Endpoint)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("transport.endpoint must be a ws:// or wss:// URL, got %q", t.Endpoint)
		}
	case KindRedis, KindNATS:
		if t.Endpoint == "" {
			return fmt.Errorf("transport.endpoint is required")
		}
		if t.Inbound == "" {
			return fmt.Errorf("transport.inbound is required")
		}
	case KindFile:
		if t.Inbound == "" {
			return fmt.Errorf("transport.inbound is required")
		}
	}
	return nil
}

// fieldErrors reports validation failures by their YAML key path.
func fieldErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s failed %q", path, fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
