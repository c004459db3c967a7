package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind string

const (
	KindNetwork     Kind = "NETWORK"
	KindTimeout     Kind = "TIMEOUT"
	KindServer      Kind = "SERVER"
	KindDecode      Kind = "DECODE"
	KindNotEditable Kind = "NOT_EDITABLE"
	KindConflict    Kind = "CONFLICT"
)

// Error is the tagged failure returned by every remote operation. Status is
// only meaningful for KindServer and keeps 200 for failures the service
// reports in-band.
type Error struct {
	Kind   Kind
	Status int
	Op     string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Kind == KindServer {
		msg = fmt.Sprintf("%s(%d)", e.Kind, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the tag of err, or "" when err is nil or untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status carried by a SERVER error, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindServer {
		return e.Status
	}
	return 0
}

func classifyTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}
