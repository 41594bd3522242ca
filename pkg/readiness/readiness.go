// Package readiness polls an HTTP endpoint until the server behind it
// answers 200.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/esembed/internal/logger"
)

const (
	DefaultInterval       = 100 * time.Millisecond
	DefaultTimeout        = 30 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("readiness timeout")

// TimeoutError reports that the endpoint never answered 200 within the
// bound. Err is the last failure observed.
type TimeoutError struct {
	URL      string
	Elapsed  time.Duration
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s not ready after %s (%d attempts)", e.URL, e.Elapsed.Round(time.Millisecond), e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StatusError is the failure recorded for a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Probe polls URL every Interval until it answers 200. The overall bound is
// the earlier of Timeout and the caller's context.
type Probe struct {
	URL            string
	Interval       time.Duration
	Timeout        time.Duration
	RequestTimeout time.Duration
	Client         *http.Client

	// OnAttempt, when set, is called after every failed attempt.
	OnAttempt func(attempt int, err error)
}

// New returns a Probe with default timing.
func New(url string) *Probe {
	return &Probe{
		URL:            url,
		Interval:       DefaultInterval,
		Timeout:        DefaultTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

func (p *Probe) withDefaults() Probe {
	c := *p
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	return c
}

// Wait blocks until the endpoint answers 200. Connection failures and
// non-200 responses are retried. When the bound is reached it returns a
// *TimeoutError wrapping the last failure.
func (p *Probe) Wait(ctx context.Context) error {
	cfg := p.withDefaults()
	if _, err := http.NewRequest(http.MethodGet, cfg.URL, nil); err != nil {
		return fmt.Errorf("readiness: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	attempts := 0
	var last error

	check := func() error {
		attempts++
		err := cfg.check(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil && last != nil {
			// The request was cut short by the bound itself; keep the
			// last real failure as the cause.
			return err
		}
		last = err
		if IsConnRefused(err) {
			logger.Debug("readiness: not listening yet", logger.KeyURL, cfg.URL, logger.KeyAttempt, attempts)
		} else {
			logger.Debug("readiness: not ready", logger.KeyURL, cfg.URL, logger.KeyAttempt, attempts, logger.Err(err))
		}
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempts, err)
		}
		return err
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(cfg.Interval), ctx)
	if err := backoff.Retry(check, b); err != nil {
		if last == nil {
			last = err
		}
		return &TimeoutError{URL: cfg.URL, Elapsed: time.Since(start), Attempts: attempts, Err: last}
	}

	logger.Debug("readiness: ready", logger.KeyURL, cfg.URL, logger.KeyAttempt, attempts,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

func (p Probe) check(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// IsConnRefused reports whether err is a refused TCP connection, the normal
// state while the server is still booting.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
