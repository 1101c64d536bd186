package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Reason explains why a probe produced no evidence.
type Reason string

const (
	Timeout      Reason = "timeout"
	NetworkError Reason = "network_error"
	NotFound     Reason = "not_found"
	ParseError   Reason = "parse_error"
)

// Result is the outcome of a single probe: either a value or an Unavailable reason.
type Result[T any] struct {
	value  T
	reason Reason
	ok     bool
}

// Ok wraps a successful observation.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable marks a probe that could not determine its fact.
func Unavailable[T any](r Reason) Result[T] {
	return Result[T]{reason: r}
}

// Get returns the value and whether the probe succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

func (r Result[T]) IsOk() bool { return r.ok }

// Reason is empty for Ok results.
func (r Result[T]) Reason() Reason { return r.reason }

// OrDefault returns the value, or def when the probe was unavailable.
func (r Result[T]) OrDefault(def T) T {
	if r.ok {
		return r.value
	}
	return def
}

// Classify maps a transport-level error onto a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return Timeout
		}
		if dnsErr.IsNotFound {
			return NotFound
		}
	}
	return NetworkError
}

// isRefused reports whether err is a TCP connection refusal.
func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
