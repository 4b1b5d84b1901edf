package gows

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults resolved from SPEC_FULL.md §9's formerly-open questions: a 10ms
// read timeout (how promptly a blocked frame read notices a Stop request),
// and a 16 MiB payload cap
// enforced per-frame during decode.
const (
	defaultReadTimeout             = 10 * time.Millisecond
	defaultMaxPayloadLength   int64 = 16 * 1024 * 1024
	unlimitedMaxPayloadLength int64 = 0
)

// endpointConfig holds everything a Connect or Listen call needs beyond
// the network address, shared between client and server construction.
type endpointConfig struct {
	logger           zerolog.Logger
	maxPayloadLength int64
	readTimeout      time.Duration
}

func defaultEndpointConfig() endpointConfig {
	return endpointConfig{
		logger:           zerolog.Nop(),
		maxPayloadLength: defaultMaxPayloadLength,
		readTimeout:      defaultReadTimeout,
	}
}

// Option configures a Connect or Listen call. ClientOption and ServerOption
// are the same underlying type: every option applies equally to a client
// or a server endpoint.
type Option func(*endpointConfig)

type ClientOption = Option
type ServerOption = Option

// WithLogger attaches l as the base logger for a connection (or, for
// Listen, for the server and every connection it accepts). Fields
// identifying the connection (id, remote address, role) are added
// automatically. The default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *endpointConfig) { c.logger = l }
}

// WithMaxPayloadLength caps the declared payload length this endpoint will
// accept in a single frame; a larger declared length fails the connection
// with ErrPayloadTooLarge rather than allocating to read it. Pass 0 to
// disable the cap. The default is 16 MiB.
func WithMaxPayloadLength(n int64) Option {
	if n < 0 {
		n = unlimitedMaxPayloadLength
	}
	return func(c *endpointConfig) { c.maxPayloadLength = n }
}

// WithReadTimeout sets how long a blocked read waits before the frame
// reader re-checks for a Stop request (OnMessage) or loops again
// (Messages). It applies to connection frame reads only; the server's
// accept loop and the handshake read do not use it. The default is 10ms;
// very small values trade CPU for responsiveness.
func WithReadTimeout(d time.Duration) Option {
	return func(c *endpointConfig) { c.readTimeout = d }
}
