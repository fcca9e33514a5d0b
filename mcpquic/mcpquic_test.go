package mcpquic

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendMagicBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := SendMagicBytes(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != MagicBytesMCP {
		t.Fatalf("magic: got %q, want %q", buf.String(), MagicBytesMCP)
	}
}

func TestValidateMagicBytes_Valid(t *testing.T) {
	r := bytes.NewReader([]byte(MagicBytesMCP))
	if err := ValidateMagicBytes(r); err != nil {
		t.Fatal(err)
	}
}

func TestValidateMagicBytes_Invalid(t *testing.T) {
	r := bytes.NewReader([]byte("HTTP"))
	err := ValidateMagicBytes(r)
	if err == nil {
		t.Fatal("expected error for invalid magic bytes")
	}
	if !errors.Is(err, ErrInvalidMagicBytes) {
		t.Fatalf("expected ErrInvalidMagicBytes, got: %v", err)
	}
}

func TestValidateMagicBytes_TooShort(t *testing.T) {
	r := bytes.NewReader([]byte("MC"))
	if err := ValidateMagicBytes(r); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestSendAndValidate_Roundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := SendMagicBytes(&buf); err != nil {
		t.Fatal(err)
	}
	if err := ValidateMagicBytes(&buf); err != nil {
		t.Fatal(err)
	}
}

func TestProductionQUICConfig(t *testing.T) {
	cfg := ProductionQUICConfig()
	if cfg.MaxIdleTimeout != DefaultIdleTimeout {
		t.Fatalf("idle timeout: got %v", cfg.MaxIdleTimeout)
	}
	if cfg.KeepAlivePeriod != DefaultKeepAlive {
		t.Fatalf("keepalive: got %v", cfg.KeepAlivePeriod)
	}
	if cfg.Allow0RTT {
		t.Fatal("0-RTT should be disabled")
	}
}

func TestSelfSignedTLSConfig(t *testing.T) {
	cfg, err := SelfSignedTLSConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("certs: got %d", len(cfg.Certificates))
	}
	if cfg.MinVersion != 0x0304 { // tls.VersionTLS13
		t.Fatalf("min version: got %x", cfg.MinVersion)
	}
	found := false
	for _, p := range cfg.NextProtos {
		if p == ALPNProtocolMCP {
			found = true
		}
	}
	if !found {
		t.Fatalf("ALPN: mcp protocol not found in %v", cfg.NextProtos)
	}
}

func TestClientTLSConfig(t *testing.T) {
	if !ClientTLSConfig(true).InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify=true")
	}
	cfg := ClientTLSConfig(false)
	if cfg.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify=false")
	}
	if cfg.MinVersion != 0x0304 {
		t.Fatalf("min version: got %x", cfg.MinVersion)
	}
}

func TestH3TLSConfig(t *testing.T) {
	base, err := SelfSignedTLSConfig()
	if err != nil {
		t.Fatal(err)
	}
	h3 := H3TLSConfig(base)
	if len(h3.NextProtos) != 1 || h3.NextProtos[0] != "h3" {
		t.Fatalf("ALPN: got %v, want [h3]", h3.NextProtos)
	}
	if base.NextProtos[0] == "h3" {
		t.Fatal("base config should not be mutated")
	}
}

func TestConnectionError(t *testing.T) {
	inner := errors.New("timeout")
	ce := &ConnectionError{
		RemoteAddr: "127.0.0.1:8443",
		Code:       ConnErrorProtocolViolation,
		Err:        inner,
	}

	msg := ce.Error()
	if !strings.Contains(msg, "127.0.0.1:8443") {
		t.Fatalf("error missing remote addr: %s", msg)
	}
	if !strings.Contains(msg, "0x03") {
		t.Fatalf("error missing code: %s", msg)
	}
	if !errors.Is(ce, inner) {
		t.Fatal("Unwrap should return inner error")
	}
}

func TestNewClient_DefaultTLS(t *testing.T) {
	c := NewClient("localhost:8443", nil)
	if c.addr != "localhost:8443" {
		t.Fatalf("addr: got %q", c.addr)
	}
	if c.tlsCfg == nil || c.tlsCfg.InsecureSkipVerify {
		t.Fatal("default TLS should verify the server cert")
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient("localhost:1234", nil)
	ctx := context.Background()

	if _, err := c.ListTools(ctx); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("ListTools err = %v, want ErrConnectionClosed", err)
	}
	if _, err := c.CallTool(ctx, "test", nil); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("CallTool err = %v, want ErrConnectionClosed", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Ping err = %v, want ErrConnectionClosed", err)
	}
}
