package pipeline

import (
	"context"
	"net/http"
	"time"
)

// Checker reports whether the registry is reachable. Connectivity is
// sampled at save time, never cached.
type Checker interface {
	Online(ctx context.Context) bool
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) bool

func (f CheckerFunc) Online(ctx context.Context) bool { return f(ctx) }

// Static returns a Checker with a fixed answer.
func Static(online bool) Checker {
	return CheckerFunc(func(context.Context) bool { return online })
}

// NewHTTPChecker probes the registry health endpoint.
func NewHTTPChecker(baseURL string) Checker {
	client := &http.Client{Timeout: 3 * time.Second}
	return CheckerFunc(func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	})
}
