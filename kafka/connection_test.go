package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

func TestResolveCompression(t *testing.T) {
	tests := []struct {
		name     string
		expected kafkago.Compression
	}{
		{"gzip", kafkago.Gzip},
		{"lz4", kafkago.Lz4},
		{"zstd", kafkago.Zstd},
		{"snappy", kafkago.Snappy},
		{"none", 0},
		{"unknown", kafkago.Snappy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCompression(tt.name); got != tt.expected {
				t.Errorf("ResolveCompression(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestBuildSASLMechanism(t *testing.T) {
	for _, mech := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		t.Run(mech, func(t *testing.T) {
			m, err := buildSASLMechanism(&Config{SASLMechanism: mech, Username: "user", Password: "pass"})
			if err != nil {
				t.Fatalf("buildSASLMechanism() error: %v", err)
			}
			if m == nil {
				t.Fatal("expected non-nil mechanism")
			}
		})
	}
	if _, err := buildSASLMechanism(&Config{SASLMechanism: "KERBEROS"}); err == nil {
		t.Fatal("expected error for unsupported mechanism")
	}
}

func TestCreateTransport(t *testing.T) {
	cfg := &Config{DialTimeout: "5s", IdleTimeout: "30s", MetadataTTL: "6s"}
	transport, err := CreateTransport(cfg)
	if err != nil {
		t.Fatalf("CreateTransport() error: %v", err)
	}
	if transport.TLS != nil || transport.SASL != nil {
		t.Error("expected a plain transport")
	}
	if transport.DialTimeout != 5*time.Second || transport.MetadataTTL != 6*time.Second {
		t.Errorf("durations not applied: %+v", transport)
	}

	cfg.EnableTLS, cfg.TLSSkipVerify = true, true
	cfg.EnableSASL, cfg.SASLMechanism, cfg.Username = true, "PLAIN", "user"
	transport, err = CreateTransport(cfg)
	if err != nil {
		t.Fatalf("CreateTransport() error: %v", err)
	}
	if transport.TLS == nil || !transport.TLS.InsecureSkipVerify {
		t.Error("expected TLS with skip verify")
	}
	if transport.SASL == nil {
		t.Error("expected a SASL mechanism")
	}
}

func TestCreateDialer(t *testing.T) {
	dialer, err := CreateDialer(&Config{DialTimeout: "10s"})
	if err != nil {
		t.Fatalf("CreateDialer() error: %v", err)
	}
	if !dialer.DualStack || dialer.Timeout != 10*time.Second {
		t.Errorf("unexpected dialer %+v", dialer)
	}
	if dialer.TLS != nil || dialer.SASLMechanism != nil {
		t.Error("expected a plain dialer")
	}

	dialer, err = CreateDialer(&Config{EnableSASL: true, SASLMechanism: "SCRAM-SHA-256", Username: "u"})
	if err != nil {
		t.Fatalf("CreateDialer() error: %v", err)
	}
	if dialer.SASLMechanism == nil {
		t.Error("expected a SASL mechanism")
	}
}

func TestTLSConfigErrors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing CA file", Config{EnableTLS: true, TLSCAFile: "/nonexistent/ca.pem"}},
		{"unparseable CA", Config{EnableTLS: true, TLSCAFile: garbage}},
		{"missing key pair", Config{EnableTLS: true, TLSCertFile: "/nonexistent/c.pem", TLSKeyFile: "/nonexistent/k.pem"}},
		{"invalid SASL", Config{EnableSASL: true, SASLMechanism: "INVALID"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateTransport(&tt.cfg); err == nil {
				t.Error("expected CreateTransport error")
			}
			if _, err := CreateDialer(&tt.cfg); err == nil {
				t.Error("expected CreateDialer error")
			}
		})
	}
}
