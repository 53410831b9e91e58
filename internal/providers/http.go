package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 8 << 20

// statusError classifies a non-2xx response.
func statusError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", ErrAuthRequired, resp.Status, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %s", ErrRateLimited, resp.Status, msg)
	default:
		return fmt.Errorf("%w: %s: %s", ErrUpstream, resp.Status, msg)
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	return body, nil
}

// transportError classifies an error returned by http.Client.Do. A cancelled
// caller context is passed through untouched.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isNetworkTransient(err) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff returns base * 2^attempt, capped at 32x.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	return base * time.Duration(1<<attempt)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
