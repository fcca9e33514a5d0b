package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("order[%d]: got %s, want %s", i, order[i], expected[i])
		}
	}
}

func TestLogging_PassesThroughError(t *testing.T) {
	boom := errors.New("boom")
	ep := Logging(nil, "test")(func(context.Context, any) (any, error) {
		return nil, boom
	})
	if _, err := ep(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want boom", err)
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	if got := GetTransport(ctx); got != "http" {
		t.Errorf("default transport: got %q, want http", got)
	}
	ctx = WithTransport(ctx, "mcp")
	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("transport: got %q, want mcp", got)
	}

	ctx = WithTraceID(ctx, "t-1")
	if got := GetTraceID(ctx); got != "t-1" {
		t.Errorf("trace id: got %q, want t-1", got)
	}

	ctx = WithRemoteAddr(ctx, "10.0.0.1:9")
	if got := GetRemoteAddr(ctx); got != "10.0.0.1:9" {
		t.Errorf("remote addr: got %q", got)
	}
}
