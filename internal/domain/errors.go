package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a vendor or cache failure.
type Kind string

const (
	KindAPI        Kind = "API"
	KindNetwork    Kind = "NETWORK"
	KindParsing    Kind = "PARSING"
	KindRateLimit  Kind = "RATE_LIMIT"
	KindNotFound   Kind = "NOT_FOUND"
	KindCacheWrite Kind = "CACHE_WRITE"
	KindOther      Kind = "OTHER"
)

var (
	// ErrNotFound is returned for unknown components and part numbers.
	ErrNotFound = errors.New("not found")
	// ErrNoData means every vendor failed on a cache miss, as opposed to a
	// search that legitimately matched nothing.
	ErrNoData = errors.New("no data available")
)

// Error is the tagged failure raised at vendor and cache boundaries.
type Error struct {
	Kind      Kind
	Retryable bool
	Vendor    string
	Op        string
	Details   any
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Vendor != "" {
		msg = e.Vendor + ": " + msg
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match NOT_FOUND errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

func newError(kind Kind, retryable bool, op string, err error) *Error {
	return &Error{Kind: kind, Retryable: retryable, Op: op, Err: err}
}

// NetworkError covers navigation failures and timeouts.
func NetworkError(op string, err error) *Error { return newError(KindNetwork, true, op, err) }

// ParsingError means the markup did not have the expected shape. Retried a
// few times since short glitches heal; layout changes surface once retries run out.
func ParsingError(op string, err error) *Error { return newError(KindParsing, true, op, err) }

// RateLimitError is a throttling signal from the vendor.
func RateLimitError(op string, err error) *Error { return newError(KindRateLimit, true, op, err) }

// NotFoundError is terminal.
func NotFoundError(op string, format string, args ...any) *Error {
	return newError(KindNotFound, false, op, fmt.Errorf(format, args...))
}

// CacheWriteError wraps a failed persistence write.
func CacheWriteError(op string, err error) *Error { return newError(KindCacheWrite, false, op, err) }

// WithVendor tags err with vendor when it is a domain error without one.
func WithVendor(err error, vendor string) error {
	var de *Error
	if errors.As(err, &de) && de.Vendor == "" {
		cp := *de
		cp.Vendor = vendor
		return &cp
	}
	return err
}

// IsRetryable reports whether the retry policy may try err again. Errors that
// are not domain errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// KindOf returns the kind of err, KindOther for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindOther
}
