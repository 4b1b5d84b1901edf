package gows

import (
	"net"
)

// Server accepts incoming TCP connections and performs the WebSocket
// Upgrade handshake as the server, per spec.md §4.5.
type Server struct {
	listener net.Listener
	cfg      endpointConfig
}

// Listen binds addr and returns a Server ready to accept connections.
func Listen(addr string, opts ...ServerOption) (*Server, error) {
	cfg := defaultEndpointConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, newError(KindUnknown, err)
	}

	cfg.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return &Server{listener: ln, cfg: cfg}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops accepting new connections. Any goroutine blocked in
// ConnectionIter.Next unblocks with a false return.
func (s *Server) Close() error { return s.listener.Close() }

// Connections returns a pull iterator over incoming handshake attempts,
// mirroring original_source/src/server.rs's iter_connections().ok(): every
// item has already passed handshake validation (invalid Upgrade requests
// are logged and skipped internally; a TCP accept error ends iteration and
// is reported by Err), and the caller is responsible for calling Accept or
// Reject on each one.
func (s *Server) Connections() *ConnectionIter {
	return &ConnectionIter{server: s}
}

// ConnectionIter is a pull iterator over pre-accepted connections. Use it
// the way a bufio.Scanner is used: for it.Next() { ... it.PreAccept() ... }.
//
// Unlike original_source's TcpListener-based design, which needs a
// WouldBlock/non-blocking accept loop to stay interruptible,
// net.Listener.Accept blocks without spinning and unblocks cleanly when
// the Server is closed, so Next needs no polling loop of its own.
type ConnectionIter struct {
	server *Server
	cur    *PreAccept
	err    error
}

// Next blocks until a connection has passed handshake validation, or the
// server is closed. It returns false (after setting Err) once the
// listener is closed or Accept fails.
func (it *ConnectionIter) Next() bool {
	for {
		conn, err := it.server.listener.Accept()
		if err != nil {
			it.err = newError(KindUnknown, err)
			return false
		}

		header, herr := ReadHeader(conn)
		if herr != nil || !header.IsValidWebsocketRequest() {
			it.server.cfg.logger.Warn().Err(herr).Msg("rejecting connection: invalid handshake request")
			conn.Close()
			continue
		}

		it.cur = &PreAccept{conn: conn, header: header, cfg: it.server.cfg}
		return true
	}
}

// PreAccept returns the item produced by the most recent call to Next
// that returned true.
func (it *ConnectionIter) PreAccept() *PreAccept { return it.cur }

// Err returns the reason iteration stopped, once Next has returned false.
// A server shutdown (Server.Close) surfaces as the listener's own "use of
// closed network connection" error.
func (it *ConnectionIter) Err() error { return it.err }

// Ok returns the iterator itself: unlike original_source's
// iter_connections(), which returns a raw Result-yielding iterator that
// .ok() then filters, ConnectionIter already only ever yields items that
// passed handshake validation. Ok exists so callers translating from the
// Rust API find the name they expect.
func (it *ConnectionIter) Ok() *ConnectionIter { return it }

// AutoAccept returns a derived iterator that accepts every incoming
// connection automatically, mirroring
// original_source/src/server.rs's iter_connections().auto_accept():
// connections whose Accept fails are logged and skipped.
func (it *ConnectionIter) AutoAccept() *AutoAcceptIter {
	return &AutoAcceptIter{it: it}
}

// AutoAcceptIter is a pull iterator over fully-established connections.
type AutoAcceptIter struct {
	it  *ConnectionIter
	cur *Connection
}

// Next advances to the next successfully-accepted connection.
func (a *AutoAcceptIter) Next() bool {
	for a.it.Next() {
		c, err := a.it.PreAccept().Accept()
		if err != nil {
			a.it.server.cfg.logger.Warn().Err(err).Msg("auto-accept: handshake response failed")
			continue
		}
		a.cur = c
		return true
	}
	return false
}

// Connection returns the connection produced by the most recent call to
// Next that returned true.
func (a *AutoAcceptIter) Connection() *Connection { return a.cur }

// Err returns the reason iteration stopped, once Next has returned false.
func (a *AutoAcceptIter) Err() error { return a.it.Err() }

// PreAccept is an incoming connection that has passed handshake request
// validation but hasn't yet been answered, per spec.md §4.5. The caller
// may inspect request headers (e.g. to route by path or sub-protocol —
// both represented as ordinary header pairs here) before deciding to
// Accept or Reject it.
type PreAccept struct {
	conn   net.Conn
	header *Header
	cfg    endpointConfig
}

// Header returns the named request header's value, mirroring
// original_source/src/server.rs's WebsocketConnectionPreAccept::get_header.
func (p *PreAccept) Header(name string) (string, bool) { return p.header.Get(name) }

// Accept answers the handshake with a 101 Switching Protocols response and
// returns the established, server-side Connection.
func (p *PreAccept) Accept() (*Connection, error) {
	resp := p.header.IntoWebsocketResponse()
	if _, err := p.conn.Write(resp.Bytes()); err != nil {
		p.conn.Close()
		return nil, newError(KindUnknown, err)
	}
	return newConnection(p.conn, false, p.cfg), nil
}

// Reject refuses the handshake and closes the underlying socket without
// answering it.
func (p *PreAccept) Reject() error {
	return p.conn.Close()
}
