package gows

import (
	"net"
)

// Connect dials addr over TCP, performs the WebSocket Upgrade handshake as
// the client, and returns an established Connection on success, per
// spec.md §4.5. The connection masks every outbound frame, per the
// role-based masking resolved in SPEC_FULL.md §9.
func Connect(addr string, opts ...ClientOption) (*Connection, error) {
	cfg := defaultEndpointConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, newError(KindUnknown, err)
	}

	if _, err := conn.Write(WebsocketRequest().Bytes()); err != nil {
		conn.Close()
		return nil, newError(KindUnknown, err)
	}

	respHeader, err := ReadHeader(conn)
	if err != nil {
		conn.Close()
		return nil, ErrInvalidRequestHeader
	}
	if !respHeader.IsValidWebsocketResponse() {
		conn.Close()
		return nil, ErrInvalidRequestHeader
	}

	c := newConnection(conn, true, cfg)
	c.log.Info().Msg("client handshake complete")
	return c, nil
}
