// Package geo wraps a device position capability into a single reading
// with accuracy metadata, an explicit timeout, and a bounded reuse
// window for recent fixes.
package geo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Reading is one geolocation fix. Absence of a reading is valid; a
// record submits without GPS when capture fails or is denied.
type Reading struct {
	Latitude       float64   `json:"lat"`
	Longitude      float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracy"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// Kind classifies a capture failure.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindTimeout          Kind = "timeout"
	KindUnsupported      Kind = "unsupported"
	// KindSuperseded marks a capture cancelled because a newer call
	// took its place. Only the newest caller's result is kept.
	KindSuperseded Kind = "superseded"
)

// Error is a typed capture failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "geo: " + string(e.Kind) + ": " + e.Err.Error()
	}
	return "geo: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Provider is the single-shot "get current position" primitive. It
// blocks until a fix is available, the context expires, or the device
// refuses.
type Provider interface {
	CurrentPosition(ctx context.Context) (Reading, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (Reading, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (Reading, error) { return f(ctx) }

// Static is a Provider that always returns fixed coordinates, used
// when the operator types a position in by hand.
func Static(lat, lng, accuracyMeters float64) Provider {
	return ProviderFunc(func(ctx context.Context) (Reading, error) {
		return Reading{Latitude: lat, Longitude: lng, AccuracyMeters: accuracyMeters}, nil
	})
}

// Config holds capture timing. Values mirror the device defaults the
// registration flow has always used.
type Config struct {
	// Timeout bounds a single position request.
	Timeout time.Duration
	// MaxAge is how long a previous fix may be reused instead of
	// requesting a new one.
	MaxAge time.Duration
}

// DefaultConfig returns an 8 second timeout with a 60 second reuse
// window.
func DefaultConfig() Config {
	return Config{
		Timeout: 8 * time.Second,
		MaxAge:  60 * time.Second,
	}
}

// Capturer serializes position requests: at most one is in flight, and
// a new call supersedes the previous one.
type Capturer struct {
	provider Provider
	config   Config

	mu       sync.Mutex
	inflight *inflight
	last     *Reading
}

type inflight struct {
	cancel context.CancelFunc
}

// NewCapturer creates a Capturer. A nil provider models a device with
// no geolocation capability; every Capture reports KindUnsupported.
func NewCapturer(provider Provider, config Config) *Capturer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Capturer{provider: provider, config: config}
}

// Capture returns a position reading. A fix younger than MaxAge is
// reused without touching the device. Any previously pending request
// is cancelled; its caller receives KindSuperseded.
func (c *Capturer) Capture(ctx context.Context) (Reading, error) {
	if c.provider == nil {
		return Reading{}, &Error{Kind: KindUnsupported}
	}

	c.mu.Lock()
	if c.last != nil && c.config.MaxAge > 0 && time.Since(c.last.CapturedAt) <= c.config.MaxAge {
		r := *c.last
		c.mu.Unlock()
		return r, nil
	}
	if c.inflight != nil {
		c.inflight.cancel()
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	req := &inflight{cancel: cancel}
	c.inflight = req
	c.mu.Unlock()
	defer cancel()

	reading, err := c.provider.CurrentPosition(reqCtx)

	c.mu.Lock()
	current := c.inflight == req
	if current {
		c.inflight = nil
	}
	if err == nil && current {
		if reading.CapturedAt.IsZero() {
			reading.CapturedAt = time.Now().UTC()
		}
		c.last = &reading
	}
	c.mu.Unlock()

	if err != nil {
		return Reading{}, classify(reqCtx, err)
	}
	if !current {
		// A newer call took over while this one was completing.
		return Reading{}, &Error{Kind: KindSuperseded}
	}
	return reading, nil
}

// Reset drops the cached fix and cancels any pending request.
func (c *Capturer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
}

func classify(reqCtx context.Context, err error) error {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		return geoErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(reqCtx.Err(), context.Canceled):
		return &Error{Kind: KindSuperseded, Err: err}
	default:
		return &Error{Kind: KindUnsupported, Err: err}
	}
}
