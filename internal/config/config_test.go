package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tripwire.yaml")

	data := `
transport:
  endpoint: wss://sensors.local:6789
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Transport.Kind != KindWebSocket {
		t.Fatalf("expected default kind websocket, got %s", cfg.Transport.Kind)
	}
	if cfg.Transport.Origin != "http://localhost/" {
		t.Fatalf("expected default origin, got %s", cfg.Transport.Origin)
	}
	if cfg.Transport.MaxBackoff != 61*time.Second {
		t.Fatalf("expected max backoff 61s, got %s", cfg.Transport.MaxBackoff)
	}
	if cfg.Expiry.Live != 10*time.Second {
		t.Fatalf("expected live expiry 10s, got %s", cfg.Expiry.Live)
	}
	if cfg.Expiry.Diagnostic != 5*time.Second {
		t.Fatalf("expected diagnostic expiry 5s, got %s", cfg.Expiry.Diagnostic)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
}

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
transport:
  kind: redis
  endpoint: localhost:6379
  inbound: sensors
  outbound: sensors.test
expiry:
  live: 30s
  diagnostic: 2s
metrics:
  addr: 127.0.0.1:9200
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport.Kind != KindRedis || cfg.Transport.Inbound != "sensors" || cfg.Transport.Outbound != "sensors.test" {
		t.Fatalf("unexpected transport %+v", cfg.Transport)
	}
	if cfg.Transport.Origin != "" {
		t.Fatalf("expected no origin for redis, got %s", cfg.Transport.Origin)
	}
	if cfg.Expiry.Live != 30*time.Second || cfg.Expiry.Diagnostic != 2*time.Second {
		t.Fatalf("unexpected expiry %+v", cfg.Expiry)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Transport.Endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %s", cfg.Transport.Endpoint)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown kind", "transport:\n  kind: mqtt\n", "transport.kind"},
		{"websocket without endpoint", "transport:\n  kind: websocket\n", "transport.endpoint is required"},
		{"http endpoint", "transport:\n  endpoint: http://sensors.local\n", "ws:// or wss://"},
		{"redis without inbound", "transport:\n  kind: redis\n  endpoint: localhost:6379\n", "transport.inbound"},
		{"file without inbound", "transport:\n  kind: file\n", "transport.inbound"},
		{"negative expiry", "transport:\n  endpoint: ws://h:1\nexpiry:\n  live: -1s\n", "expiry.live"},
		{"negative backoff", "transport:\n  endpoint: ws://h:1\n  max_backoff: -5s\n", "transport.max_backoff"},
		{"bad metrics addr", "transport:\n  endpoint: ws://h:1\nmetrics:\n  addr: nine-one-hundred\n", "metrics.addr"},
		{"not yaml", "transport: [", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseReportsYAMLKeys(t *testing.T) {
	_, err := Parse([]byte("transport:\n  kind: mqtt\n  max_backoff: -1s\nexpiry:\n  diagnostic: -2s\n"))
	if err == nil {
		t.Fatal("expected error")
	}

	want := `invalid config: transport.kind failed "oneof"; transport.max_backoff failed "gte"; expiry.diagnostic failed "gt"`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestReadDefersValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripwire.yaml")
	if err := os.WriteFile(path, []byte("transport:\n  kind: websocket\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing endpoint to fail validation")
	}

	cfg.Transport.Endpoint = "ws://sensors.local:6789"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config after override, got %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to validate")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
