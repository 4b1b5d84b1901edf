package gows

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderBytesRoundTrip(t *testing.T) {
	h := WebsocketRequest()
	h.Add("Host", "example.com")
	h.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	parsed, err := ParseHeader(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h.LeadingLine, parsed.LeadingLine)
	require.True(t, parsed.IsValidWebsocketRequest())

	v, ok := parsed.Get("Host")
	require.True(t, ok)
	require.Equal(t, "example.com", v)
}

// RFC 6455 §1.3's worked example.
func TestIntoWebsocketResponseComputesAccept(t *testing.T) {
	req := WebsocketRequest()
	req.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	resp := req.IntoWebsocketResponse()
	accept, ok := resp.Get("Sec-WebSocket-Accept")
	require.True(t, ok)
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", accept)
	require.True(t, resp.IsValidWebsocketResponse())
}

func TestParseHeaderMissingTrailingNewLine(t *testing.T) {
	_, err := ParseHeader([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n"))
	require.ErrorIs(t, err, ErrInvalidRequestHeader)
}

func TestParseHeaderMalformedLine(t *testing.T) {
	_, err := ParseHeader([]byte("GET / HTTP/1.1\r\nnocolon\r\n\r\n"))
	require.ErrorIs(t, err, ErrInvalidRequestHeader)
}

func TestReadHeaderFromReader(t *testing.T) {
	buf := bytes.NewBuffer(WebsocketRequest().Bytes())
	h, err := ReadHeader(buf)
	require.NoError(t, err)
	require.True(t, h.IsValidWebsocketRequest())
}

func TestIsValidWebsocketRequestRejectsWrongMethod(t *testing.T) {
	h := NewHeader()
	h.LeadingLine = "POST / HTTP/1.1"
	h.Add("Connection", "Upgrade")
	h.Add("Upgrade", "websocket")
	require.False(t, h.IsValidWebsocketRequest())
}
