package cache

import (
	"context"
	"errors"
	"net"
)

// ErrCircuitOpen is returned by stores that refuse calls while their backend
// is considered down.
var ErrCircuitOpen = errors.New("cache: circuit open")

// ErrPrefixUnsupported is returned by Service.RemovePrefix when the store
// cannot enumerate keys.
var ErrPrefixUnsupported = errors.New("cache: store does not support prefix removal")

// ErrorKind classifies cache backend failures for logs and metrics.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindDecode      ErrorKind = "decode"
	KindCircuitOpen ErrorKind = "circuit_open"
)

// Error describes a recovered cache failure. It never reaches callers of the
// query API; it is only logged and counted.
type Error struct {
	Op   string
	Key  string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return "cache " + e.Op + " " + e.Key + " (" + string(e.Kind) + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps a backend error to its kind.
func Classify(err error) ErrorKind {
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnavailable
}

func newError(op, key string, err error) *Error {
	return &Error{Op: op, Key: key, Kind: Classify(err), Err: err}
}
