// Package errs defines the sentinel error kinds shared across the ENIP/CIP
// stack. Concrete errors wrap one of these with fmt.Errorf("...: %w", ...)
// so callers use errors.Is rather than type assertions.
package errs

import "errors"

var (
	// ErrParse marks a malformed tag string or path overflow.
	ErrParse = errors.New("parse error")
	// ErrResolve marks a hostname lookup failure.
	ErrResolve = errors.New("resolve error")
	// ErrConnect marks a TCP-level connection failure or timeout.
	ErrConnect = errors.New("connect error")
	// ErrHandshake marks a ListServices/RegisterSession negotiation failure.
	ErrHandshake = errors.New("handshake error")
	// ErrTransport marks a short send, recv EOF/error, or frame-read timeout.
	ErrTransport = errors.New("transport error")
	// ErrProtocol marks a malformed or unexpected encapsulation/CIP frame.
	ErrProtocol = errors.New("protocol error")
	// ErrType marks an unknown CIP type or a failed caller-side coercion.
	ErrType = errors.New("type error")
	// ErrNoData marks a frame that parsed but carries no prior type
	// information to interpret its payload.
	ErrNoData = errors.New("no data")
)
