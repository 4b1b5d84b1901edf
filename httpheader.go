package gows

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // required by RFC 6455 for Sec-WebSocket-Accept, not for security.
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// websocketGUID is appended to Sec-WebSocket-Key before hashing, per
// https://datatracker.ietf.org/doc/html/rfc6455#section-1.3.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// headerReadBudget is the single-read budget for a handshake header
// (spec.md §4.2): a header that doesn't fit fails MissingTrailingNewLine.
const headerReadBudget = 512

// NameValuePair is one "name: value" line of an HTTP header, kept as its
// own type (rather than a bare [2]string) so size accounting for
// Header.Bytes' capacity pre-allocation is exact, matching
// original_source/src/http.rs's NameValuePair.
type NameValuePair struct {
	Name, Value string
}

func (p NameValuePair) size() int { return len(p.Name) + 2 + len(p.Value) }

// Header is a minimal HTTP/1.1 header: one leading line (request-line or
// status-line) plus an ordered list of name/value pairs, per spec.md §4.2.
type Header struct {
	LeadingLine string
	pairs       []NameValuePair
}

// NewHeader returns an empty header with no leading line and no pairs.
func NewHeader() *Header { return &Header{} }

// WebsocketRequest returns the request template from spec.md §4.2:
// "GET / HTTP/1.1" with Connection/Upgrade set for a WebSocket Upgrade.
func WebsocketRequest() *Header {
	h := NewHeader()
	h.LeadingLine = "GET / HTTP/1.1"
	h.Add("Connection", "Upgrade")
	h.Add("Upgrade", "websocket")
	return h
}

// WebsocketResponse returns the response template from spec.md §4.2:
// "101 Switching Protocols" with Connection/Upgrade set.
func WebsocketResponse() *Header {
	h := NewHeader()
	h.LeadingLine = "HTTP/1.1 101 Switching Protocols"
	h.Add("Upgrade", "websocket")
	h.Add("Connection", "Upgrade")
	return h
}

// IntoWebsocketResponse derives a response header from a request header
// (spec.md §4.2): starts from WebsocketResponse, and if the request
// carries a Sec-WebSocket-Key, adds the computed Sec-WebSocket-Accept.
func (h *Header) IntoWebsocketResponse() *Header {
	resp := WebsocketResponse()
	if key, ok := h.Get("Sec-WebSocket-Key"); ok {
		resp.Add("Sec-WebSocket-Accept", acceptKey(key))
	}
	return resp
}

// acceptKey computes base64(sha1(key ++ websocketGUID)).
func acceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec // RFC 6455 mandates SHA-1 here.
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Add appends a name/value pair. Multiple pairs with the same name are
// kept distinct; Get returns the first match.
func (h *Header) Add(name, value string) {
	h.pairs = append(h.pairs, NameValuePair{Name: name, Value: value})
}

// Get returns the first pair's value with the given name (case-sensitive,
// matching the Rust original; real HTTP header names are conventionally
// cased consistently by both peers in this handshake subset).
func (h *Header) Get(name string) (string, bool) {
	for _, p := range h.pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Pairs returns the header's name/value pairs in wire order.
func (h *Header) Pairs() []NameValuePair {
	return append([]NameValuePair(nil), h.pairs...)
}

// Bytes renders the header to its wire form:
// leading_line CRLF (name ": " value CRLF)* CRLF.
func (h *Header) Bytes() []byte {
	size := len(h.LeadingLine) + 2
	for _, p := range h.pairs {
		size += p.size() + 2
	}
	size += 2

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteString(h.LeadingLine)
	buf.WriteString("\r\n")
	for _, p := range h.pairs {
		buf.WriteString(p.Name)
		buf.WriteString(": ")
		buf.WriteString(p.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func (h *Header) String() string { return string(h.Bytes()) }

// IsValidWebsocketRequest reports whether h is a minimally valid Upgrade
// request: a leading line starting with "GET", Connection: Upgrade, and
// Upgrade: websocket (spec.md §4.2).
func (h *Header) IsValidWebsocketRequest() bool {
	if !strings.HasPrefix(h.LeadingLine, "GET") {
		return false
	}
	return h.hasUpgradePair()
}

// IsValidWebsocketResponse reports whether h is a minimally valid Upgrade
// response: the exact "101 Switching Protocols" status line, Connection:
// Upgrade, and Upgrade: websocket (spec.md §4.2).
func (h *Header) IsValidWebsocketResponse() bool {
	if h.LeadingLine != "HTTP/1.1 101 Switching Protocols" {
		return false
	}
	return h.hasUpgradePair()
}

func (h *Header) hasUpgradePair() bool {
	conn, ok := h.Get("Connection")
	if !ok || conn != "Upgrade" {
		return false
	}
	upgrade, ok := h.Get("Upgrade")
	return ok && upgrade == "websocket"
}

// ErrMissingTrailingNewLine means the header didn't terminate with a blank
// line within the single-read budget (spec.md §4.2).
var ErrMissingTrailingNewLine = errors.New("missing trailing newline in HTTP header")

// ReadHeader reads and parses a handshake header from r. It consumes up
// to one buffer-worth (headerReadBudget bytes) in a single read; the
// header must fit within that budget (spec.md §4.2).
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerReadBudget)
	n, err := r.Read(buf)
	if err != nil || n == 0 {
		return nil, newError(KindInvalidRequestHeader, errEOF)
	}
	return ParseHeader(buf[:n])
}

// ParseHeader parses a header from an in-memory buffer. The parser
// tolerates arbitrary whitespace around the ":" separator (spec.md §4.2).
func ParseHeader(b []byte) (*Header, error) {
	h := NewHeader()

	lines := splitCRLF(b)
	if len(lines) == 0 {
		return nil, newError(KindInvalidRequestHeader, ErrMissingTrailingNewLine)
	}

	h.LeadingLine = string(lines[0])
	foundTrailingBlank := false

	for _, line := range lines[1:] {
		if len(line) == 0 {
			foundTrailingBlank = true
			break
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return nil, newError(KindInvalidRequestHeader, errors.New("malformed header line"))
		}
		name := strings.TrimSpace(string(line[:idx]))
		value := strings.TrimSpace(string(line[idx+1:]))
		h.Add(name, value)
	}

	if !foundTrailingBlank {
		return nil, newError(KindInvalidRequestHeader, ErrMissingTrailingNewLine)
	}
	return h, nil
}

// splitCRLF splits b on "\r\n" boundaries, mirroring
// original_source/src/http.rs's Lines iterator: it only yields lines that
// are properly CRLF-terminated, so a trailing partial line is discarded
// rather than returned as a final, unterminated entry.
func splitCRLF(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			lines = append(lines, b[start:i])
			start = i + 2
			i++
		}
	}
	return lines
}
