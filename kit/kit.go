// Package kit carries the small transport-agnostic plumbing shared by the
// HTTP and MCP surfaces: the endpoint and middleware types and the
// request-scoped context values.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a transport-agnostic operation: typed request in, typed
// response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middleware left to right: the first listed runs outermost.
func Chain(mw ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Logging returns middleware that logs each call with its duration and
// outcome.
func Logging(logger *slog.Logger, name string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				logger.Warn("endpoint failed",
					"endpoint", name,
					"transport", GetTransport(ctx),
					"duration", time.Since(start),
					"error", err)
				return resp, err
			}
			logger.Debug("endpoint ok",
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration", time.Since(start))
			return resp, nil
		}
	}
}
