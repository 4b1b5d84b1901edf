package gows

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testCfg() endpointConfig {
	cfg := defaultEndpointConfig()
	cfg.readTimeout = 2 * time.Millisecond
	cfg.logger = zerolog.Nop()
	return cfg
}

func TestSendAndReceiveTextMessage(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	client := newConnection(c1, true, testCfg())
	server := newConnection(c2, false, testCfg())

	require.NoError(t, client.Send(TextMessage("hello")))

	it := server.Messages()
	require.True(t, it.Next())
	require.Equal(t, TextMessage("hello"), it.Message())
}

func TestFragmentedMessageReassembly(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	server := newConnection(c2, false, testCfg())

	first := Frame{Fin: false, OpCode: OpText, ApplicationData: []byte("Hel")}
	second := Frame{Fin: true, OpCode: OpContinuation, ApplicationData: []byte("lo")}
	_, err := c1.Write(first.Bytes())
	require.NoError(t, err)
	_, err = c1.Write(second.Bytes())
	require.NoError(t, err)

	it := server.Messages()
	require.True(t, it.Next())
	require.Equal(t, TextMessage("Hello"), it.Message())
}

func TestPingIsAnsweredWithPongAndNeverSurfaced(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	client := newConnection(c1, true, testCfg())
	server := newConnection(c2, false, testCfg())

	done := make(chan bool, 1)
	go func() {
		it := server.Messages()
		done <- it.Next() // drains the ping, then blocks until the socket closes
	}()

	require.NoError(t, client.Send(PingMessage()))

	f, err := ReadFrame(client.reader, 0)
	require.NoError(t, err)
	require.Equal(t, OpPong, f.OpCode)
	require.Empty(t, f.ApplicationData)

	c1.Close()
	c2.Close()
	require.False(t, <-done, "the ping must not surface as a message")
}

func TestCloseHandshakeReachesClosedState(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	b := newConnection(c2, false, testCfg())

	require.NoError(t, a.Close())
	require.Equal(t, StateCloseSent, a.State())

	bf, err := ReadFrame(b.reader, 0)
	require.NoError(t, err)
	require.Equal(t, OpConnectionClose, bf.OpCode)
	consumed, err := b.handleSpecialFrame(bf)
	require.NoError(t, err)
	require.True(t, consumed)
	require.Equal(t, StateClosed, b.State())

	af, err := ReadFrame(a.reader, 0)
	require.NoError(t, err)
	require.Equal(t, OpConnectionClose, af.OpCode)
	consumed, err = a.handleSpecialFrame(af)
	require.NoError(t, err)
	require.True(t, consumed)
	require.Equal(t, StateClosed, a.State())
}

func TestSendAfterCloseFails(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Send(TextMessage("too late")), ErrInvalidConnectionState)
}

func TestDoubleCloseFails(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Close(), ErrInvalidConnectionState)
}

func TestClientConnectionMasksOutgoingFrames(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	require.NoError(t, a.Send(TextMessage("secret")))

	f, err := ReadFrame(c2, 0)
	require.NoError(t, err)
	require.True(t, f.Mask)
	require.Equal(t, "secret", string(f.ApplicationData))
}

func TestServerConnectionDoesNotMaskOutgoingFrames(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	b := newConnection(c2, false, testCfg())
	require.NoError(t, b.Send(TextMessage("public")))

	f, err := ReadFrame(c1, 0)
	require.NoError(t, err)
	require.False(t, f.Mask)
}

func TestOnMessageDeliversAndStops(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	b := newConnection(c2, false, testCfg())

	received := make(chan Message, 1)
	h := b.OnMessage(func(m Message) { received <- m })

	require.NoError(t, a.Send(TextMessage("hi")))

	select {
	case m := <-received:
		require.Equal(t, TextMessage("hi"), m)
	case <-time.After(time.Second):
		t.Fatal("message not delivered within timeout")
	}

	h.Stop()
	h.Join()
}

func TestSenderIgnoresConnectionState(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	a := newConnection(c1, true, testCfg())
	s := a.Sender()

	require.NoError(t, a.Close())
	require.Equal(t, StateCloseSent, a.State())

	// Drain the Close frame Close wrote before asserting on the Sender's
	// write, so the two frames aren't mistaken for each other.
	_, err := ReadFrame(c2, 0)
	require.NoError(t, err)

	require.NoError(t, s.Send(TextMessage("via sender")))

	f, err := ReadFrame(c2, 0)
	require.NoError(t, err)
	require.Equal(t, "via sender", string(f.ApplicationData))
}

func TestFragmentedControlFrameEndsConnection(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	server := newConnection(c2, false, testCfg())

	bad := Frame{Fin: false, OpCode: OpPing, ApplicationData: []byte("x")}
	_, err := c1.Write(bad.Bytes())
	require.NoError(t, err)

	it := server.Messages()
	require.False(t, it.Next())
	require.Equal(t, StateClosed, server.State())
}

func TestPayloadTooLargeEndsConnection(t *testing.T) {
	c1, c2 := tcpPipe(t)
	defer c1.Close()
	defer c2.Close()

	cfg := testCfg()
	cfg.maxPayloadLength = 8
	server := newConnection(c2, false, cfg)

	big := Frame{Fin: true, OpCode: OpBinary, ApplicationData: make([]byte, 1024)}
	_, err := c1.Write(big.Bytes())
	require.NoError(t, err)

	it := server.Messages()
	require.False(t, it.Next())
	require.Equal(t, StateClosed, server.State())
}
