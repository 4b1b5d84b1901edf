package gows

import (
	"net"
	"sync"
)

// sharedConn is the mutex-guarded net.Conn shared by a ReaderHalf and a
// WriterHalf, mirroring original_source/src/stream_splitter.rs's single
// Arc<Mutex<TcpStream>> used from both generated handles (spec.md §4.3).
type sharedConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// ReaderHalf is the read side of a split net.Conn. Clones share the same
// underlying connection and mutex.
type ReaderHalf struct {
	shared *sharedConn
}

// WriterHalf is the write side of a split net.Conn. Clones share the same
// underlying connection and mutex.
type WriterHalf struct {
	shared *sharedConn
}

// SplitStream wraps one net.Conn into an independently usable reader half
// and writer half, per spec.md §4.3. Reads and writes on the two halves
// are serialized against each other by a shared mutex; each individual
// Read or Write call is atomic.
func SplitStream(conn net.Conn) (ReaderHalf, WriterHalf) {
	s := &sharedConn{conn: conn}
	return ReaderHalf{shared: s}, WriterHalf{shared: s}
}

// Read implements io.Reader.
func (r ReaderHalf) Read(p []byte) (int, error) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	return r.shared.conn.Read(p)
}

// Clone returns another handle to the same underlying connection.
func (r ReaderHalf) Clone() ReaderHalf { return r }

// ShutdownRead half-closes the read side of the underlying connection,
// falling back to a full Close for connection types without half-close
// support (see DESIGN.md).
func (r ReaderHalf) ShutdownRead() error {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	if tc, ok := r.shared.conn.(interface{ CloseRead() error }); ok {
		return tc.CloseRead()
	}
	return r.shared.conn.Close()
}

// Write implements io.Writer. The mutex covers the full call, so a write
// from one clone never interleaves with a write from another (spec.md §5).
func (w WriterHalf) Write(p []byte) (int, error) {
	w.shared.mu.Lock()
	defer w.shared.mu.Unlock()
	return w.shared.conn.Write(p)
}

// Clone returns another handle to the same underlying connection.
func (w WriterHalf) Clone() WriterHalf { return w }

// ShutdownWrite half-closes the write side of the underlying connection,
// falling back to a full Close for connection types without half-close
// support.
func (w WriterHalf) ShutdownWrite() error {
	w.shared.mu.Lock()
	defer w.shared.mu.Unlock()
	if tc, ok := w.shared.conn.(interface{ CloseWrite() error }); ok {
		return tc.CloseWrite()
	}
	return w.shared.conn.Close()
}

// Conn returns the underlying net.Conn, for deadline configuration and
// RemoteAddr(). Both halves resolve to the same connection.
func (r ReaderHalf) Conn() net.Conn { return r.shared.conn }
func (w WriterHalf) Conn() net.Conn { return w.shared.conn }
