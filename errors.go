package gows

import "errors"

// Kind classifies a [*Error] independently of the wrapped transport error,
// so callers can errors.Is against a stable value instead of matching on
// error strings.
type Kind int

const (
	// KindUnknown wraps a transport error not otherwise classified here.
	KindUnknown Kind = iota
	// KindInvalidRequestHeader means the HTTP Upgrade handshake could not
	// be parsed, or failed validation.
	KindInvalidRequestHeader
	// KindInvalidConnectionState means a Send or Close was attempted while
	// the connection was not Open.
	KindInvalidConnectionState
	// KindCantConvertToMessage means a decoded frame could not become an
	// application Message: a control opcode where data was expected, or
	// invalid UTF-8 in a Text frame.
	KindCantConvertToMessage
	// KindInvalidOpCode means the four low bits of a frame's first byte
	// didn't decode to a value frame.ReadFrame recognizes, or (from
	// Frame.Validate) a control frame was fragmented or over 125 bytes.
	KindInvalidOpCode
	// KindPayloadTooLarge means a frame declared a payload length beyond
	// the connection's configured cap.
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequestHeader:
		return "invalid request header"
	case KindInvalidConnectionState:
		return "invalid connection state"
	case KindCantConvertToMessage:
		return "can't convert frame to message"
	case KindInvalidOpCode:
		return "invalid opcode"
	case KindPayloadTooLarge:
		return "payload too large"
	default:
		return "unknown error"
	}
}

// Error is the error type returned across the public API. It carries a
// stable Kind alongside whatever transport or parse error triggered it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}

// Exported sentinels for errors.Is against the common cases. They carry no
// wrapped error, so compare only the Kind; use errors.As(&*Error{}) to
// inspect the wrapped transport error.
var (
	ErrInvalidRequestHeader   = newError(KindInvalidRequestHeader, nil)
	ErrInvalidConnectionState = newError(KindInvalidConnectionState, nil)
	ErrCantConvertToMessage   = newError(KindCantConvertToMessage, nil)
	ErrInvalidOpCode          = newError(KindInvalidOpCode, nil)
	ErrPayloadTooLarge        = newError(KindPayloadTooLarge, nil)
	ErrUnknown                = newError(KindUnknown, nil)
)

// Is reports equality by Kind, so the exported sentinels above are the
// target for errors.Is regardless of what transport error they wrap.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// errWouldBlock and errEOF are internal signals used by the frame reader
// and iterator. ReadFrame returns them as they are; Connection's iterators
// consume them, so neither is returned by Connection, Server or Connect.
var (
	errWouldBlock = errors.New("would block")
	errEOF        = errors.New("eof")
)
