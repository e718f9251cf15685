package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw         string
		bucket, key string
		ok          bool
	}{
		{"s3://audio/calls/2024/a.wav", "audio", "calls/2024/a.wav", true},
		{"s3://audio/", "", "", false},
		{"s3:///a.wav", "", "", false},
		{"https://example.com/a.wav", "", "", false},
		{"not a url", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseURL(tt.raw)
		if bucket != tt.bucket || key != tt.key || ok != tt.ok {
			t.Errorf("ParseURL(%q) = %q, %q, %v", tt.raw, bucket, key, ok)
		}
	}
}

func newTestPresigner(t *testing.T) *Presigner {
	t.Helper()
	cfg := &Config{
		Enabled:   true,
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}
	p, err := NewPresigner(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPresigner: %v", err)
	}
	return p
}

func TestResolve_Presigns(t *testing.T) {
	p := newTestPresigner(t)
	got, err := p.Resolve(context.Background(), "s3://audio/calls/a.wav")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("invalid presigned url %q: %v", got, err)
	}
	if u.Host != "127.0.0.1:9000" || u.Path != "/audio/calls/a.wav" {
		t.Errorf("expected path-style url on the custom endpoint, got %s", got)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Errorf("expected signature in %s", got)
	}
	if u.Query().Get("X-Amz-Expires") != "900" {
		t.Errorf("expected 15 minute expiry, got %s", u.Query().Get("X-Amz-Expires"))
	}
}

func TestResolve_PassThrough(t *testing.T) {
	p := newTestPresigner(t)
	raw := "https://example.com/a.wav"
	got, err := p.Resolve(context.Background(), raw)
	if err != nil || got != raw {
		t.Errorf("expected pass-through, got %q, %v", got, err)
	}
	if _, err := p.Resolve(context.Background(), "s3://bucket-only"); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("expected malformed error, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := (&Config{}).Validate(); err != nil {
		t.Errorf("disabled config should validate, got %v", err)
	}
	cfg := &Config{Enabled: true, AccessKey: "only-key"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for half-set credentials")
	}
}
