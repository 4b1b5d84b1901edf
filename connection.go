package gows

import (
	"crypto/rand"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnectionState is the lifecycle of a Connection, per spec.md §3: a
// connection starts Open, moves to CloseSent once this side has sent a
// Close frame with Close, and reaches Closed once a Close frame from the
// peer is read (directly from Open when the peer initiates the close).
type ConnectionState int32

const (
	StateOpen ConnectionState = iota
	StateCloseSent
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseSent:
		return "close-sent"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connState guards ConnectionState behind a RWMutex, mirroring
// original_source/src/connection.rs's Arc<RwLock<ConnectionState>>: cheap
// concurrent reads from Send/Close/State, serialized writes from Close and
// the frame reader.
type connState struct {
	mu sync.RWMutex
	v  ConnectionState
}

func (s *connState) get() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *connState) set(v ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

// Connection is one established WebSocket connection, client- or
// server-side, as defined in spec.md §3/§4.4. The zero value is not usable;
// construct one with Connect or through a Server's ConnectionIter.
type Connection struct {
	reader ReaderHalf
	writer WriterHalf
	state  *connState

	isClient         bool
	maxPayloadLength int64
	readTimeout      time.Duration

	log zerolog.Logger
}

// connID mints an 8-byte random hex string for log correlation. It has no
// protocol significance and isn't a UUID — a short random tag is all a
// per-connection logging key needs (see DESIGN.md on why a UUID library
// wasn't wired in for this).
func connID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	const hex = "0123456789abcdef"
	out := make([]byte, 16)
	for i, c := range b {
		out[i*2] = hex[c>>4]
		out[i*2+1] = hex[c&0xF]
	}
	return string(out)
}

// newConnection wraps conn into a Connection. isClient controls whether
// every outbound frame — application messages as well as control replies —
// is masked, per the role-based masking resolved in SPEC_FULL.md §9.
func newConnection(conn net.Conn, isClient bool, cfg endpointConfig) *Connection {
	log := cfg.logger.With().
		Str("conn_id", connID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Bool("is_client", isClient).
		Logger()

	reader, writer := SplitStream(conn)
	return &Connection{
		reader:           reader,
		writer:           writer,
		state:            &connState{},
		isClient:         isClient,
		maxPayloadLength: cfg.maxPayloadLength,
		readTimeout:      cfg.readTimeout,
		log:              log,
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnectionState { return c.state.get() }

// RemoteAddr returns the address of the peer, for logging and diagnostics.
func (c *Connection) RemoteAddr() net.Addr { return c.reader.Conn().RemoteAddr() }

// writeFrame masks f (when this connection is client-side) and writes it.
// Every outbound frame — Send, Close, and the special-frame handler's Pong
// and Close replies — goes through this one path, so the masking policy is
// applied uniformly rather than only to application messages.
func (c *Connection) writeFrame(f Frame) error {
	if c.isClient {
		var key [4]byte
		if _, err := rand.Read(key[:]); err != nil {
			return err
		}
		f.Mask = true
		f.MaskingKey = key
	}
	_, err := c.writer.Write(f.Bytes())
	return err
}

// Send transmits a Message as a single, unfragmented frame. It fails with
// ErrInvalidConnectionState once the connection has left the Open state.
func (c *Connection) Send(m Message) error {
	if c.state.get() != StateOpen {
		return ErrInvalidConnectionState
	}
	if err := c.writeFrame(m.ToFrame()); err != nil {
		return newError(KindUnknown, err)
	}
	return nil
}

// Close initiates the Close handshake: it sends a Close frame and moves the
// connection to CloseSent. It fails with ErrInvalidConnectionState if the
// connection isn't Open (a Close already in flight, or already Closed).
// The connection reaches Closed once the peer's answering Close frame is
// read back (by Messages or OnMessage, whichever is driving the
// connection).
func (c *Connection) Close() error {
	if c.state.get() != StateOpen {
		return ErrInvalidConnectionState
	}
	c.state.set(StateCloseSent)
	if err := c.writeFrame(NewControlFrame(OpConnectionClose, nil)); err != nil {
		return newError(KindUnknown, err)
	}
	return nil
}

// handleSpecialFrame answers Close and Ping frames per spec.md §4.4 and
// reports whether the frame was fully consumed (so the caller's read loop
// should not surface it as a message). It mirrors
// original_source/src/connection.rs's SpecialFrameHandler: a Close is
// echoed (only if the connection hasn't already answered one) and the
// write half is shut down; a Ping gets an immediate Pong carrying the
// Ping's payload.
func (c *Connection) handleSpecialFrame(f Frame) (consumed bool, err error) {
	switch f.OpCode {
	case OpConnectionClose:
		state := c.state.get()
		if state == StateOpen {
			if werr := c.writeFrame(NewControlFrame(OpConnectionClose, nil)); werr != nil {
				return true, newError(KindUnknown, werr)
			}
		}
		if state == StateOpen || state == StateCloseSent {
			if werr := c.writer.ShutdownWrite(); werr != nil {
				return true, newError(KindUnknown, werr)
			}
		}
		c.state.set(StateClosed)
		return true, nil
	case OpPing:
		if werr := c.writeFrame(NewControlFrame(OpPong, f.ApplicationData)); werr != nil {
			return true, newError(KindUnknown, werr)
		}
		return true, nil
	default:
		return false, nil
	}
}

// nextFrame pulls the next non-control, fully-reassembled frame off the
// wire, reassembling fragments and answering special frames along the way.
// fragments accumulates a pending fragmented message's parts across calls.
// stopCh, when non-nil, is polled before each read attempt so a background
// MessageHandler can be stopped within one readTimeout period.
//
// It returns io.EOF once the connection is done (clean disconnect, a
// protocol violation, or a stop request) — never a raw protocol error, so
// callers get a single uniform "no more frames" signal.
func (c *Connection) nextFrame(fragments *[]Frame, stopCh <-chan struct{}) (Frame, error) {
	for {
		if stopCh != nil {
			select {
			case <-stopCh:
				return Frame{}, io.EOF
			default:
			}
		}

		if err := c.reader.Conn().SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return Frame{}, io.EOF
		}

		f, err := ReadFrame(c.reader, c.maxPayloadLength)
		if err == nil {
			err = f.Validate()
		}
		switch {
		case errors.Is(err, errWouldBlock):
			continue
		case errors.Is(err, errEOF):
			return Frame{}, io.EOF
		case err != nil:
			// A malformed length field (ErrPayloadTooLarge) or a control
			// frame violating spec.md §3 (fragmented, or over 125 bytes)
			// desyncs the stream or breaks the protocol's invariants:
			// there's no way to resume framing, so the connection ends
			// here rather than dropping just this frame.
			c.log.Warn().Err(err).Msg("dropping connection after frame decode error")
			c.state.set(StateClosed)
			_ = c.writer.Conn().Close()
			return Frame{}, io.EOF
		}

		var candidate Frame
		if !f.Fin {
			*fragments = append(*fragments, f)
			continue
		}
		if len(*fragments) == 0 {
			candidate = f
		} else {
			*fragments = append(*fragments, f)
			candidate = FromFragmented(*fragments)
			*fragments = nil
		}

		consumed, herr := c.handleSpecialFrame(candidate)
		if herr != nil {
			c.log.Warn().Err(herr).Msg("dropping connection after special-frame handling error")
			return Frame{}, io.EOF
		}
		if consumed {
			continue
		}
		return candidate, nil
	}
}

// MessageIter is a pull iterator over a Connection's incoming messages,
// mirroring original_source/src/connection.rs's iter_messages/FrameIter.
// Use it from a single goroutine, the way a bufio.Scanner is used.
type MessageIter struct {
	conn      *Connection
	fragments []Frame
	cur       Message
}

// Messages returns a pull iterator over the connection's incoming
// messages. Ping frames are answered internally; Ping and Pong frames are
// never surfaced; frames that don't translate to a Message (see
// MessageFromFrame) are silently skipped, exactly as the connection's
// push-based OnMessage does.
func (c *Connection) Messages() *MessageIter {
	return &MessageIter{conn: c}
}

// Next advances the iterator and reports whether a message is available.
// It returns false once the connection is done. A clean disconnect and a
// protocol error end iteration the same way; the iterator does not report
// which one occurred (protocol errors are logged to the connection's
// logger).
func (it *MessageIter) Next() bool {
	for {
		f, err := it.conn.nextFrame(&it.fragments, nil)
		if err != nil {
			return false
		}
		msg, convErr := MessageFromFrame(f)
		if convErr != nil {
			continue
		}
		it.cur = msg
		return true
	}
}

// Message returns the message produced by the most recent call to Next
// that returned true.
func (it *MessageIter) Message() Message { return it.cur }

// Sender is a send-only, independently clonable handle to a Connection's
// write half, for fanning writes out across goroutines (spec.md §4.4) —
// e.g. from inside an OnMessage callback, which otherwise only receives
// messages. Unlike Connection.Send, it does not consult connection state:
// it holds a reference to the owning Connection and writes through that
// connection's writer half without reading its state, matching
// original_source/src/connection.rs's Sender<W>, which writes directly
// through its cloned writer with no state read at all. Callers relying on
// state enforcement must use the owning Connection's Send instead.
type Sender struct {
	conn *Connection
}

// Sender returns a new send-only handle sharing this connection's writer
// and masking policy, but not its state check.
func (c *Connection) Sender() Sender { return Sender{conn: c} }

// Send masks (if applicable) and writes m's frame directly, bypassing the
// owning Connection's state check.
func (s Sender) Send(m Message) error {
	if err := s.conn.writeFrame(m.ToFrame()); err != nil {
		return newError(KindUnknown, err)
	}
	return nil
}

// MessageHandler controls a background goroutine started by
// Connection.OnMessage, mirroring original_source/src/connection.rs's
// MessageHandler.
type MessageHandler struct {
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// Stop requests that the background goroutine exit. It does not block;
// call Join to wait for the exit to complete. Safe to call more than
// once.
func (h *MessageHandler) Stop() {
	h.once.Do(func() { close(h.stopCh) })
}

// Join blocks until the background goroutine has exited.
func (h *MessageHandler) Join() { <-h.doneCh }

// OnMessage starts a background goroutine that calls f for every incoming
// message, until Stop is requested or the connection ends. f runs on the
// background goroutine only — it must not block indefinitely, or Join
// will wait just as long.
func (c *Connection) OnMessage(f func(Message)) *MessageHandler {
	h := &MessageHandler{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go func() {
		defer close(h.doneCh)
		var fragments []Frame
		for {
			fr, err := c.nextFrame(&fragments, h.stopCh)
			if err != nil {
				return
			}
			msg, convErr := MessageFromFrame(fr)
			if convErr != nil {
				continue
			}
			f(msg)
		}
	}()

	return h
}
