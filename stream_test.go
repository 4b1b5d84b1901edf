package gows

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func tcpPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		serverCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-serverCh
	require.NotNil(t, server)
	return client, server
}

func TestSplitStreamIndependentHalves(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	sr, sw := SplitStream(server)
	_, err := sw.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	_, err = client.Write([]byte("pong"))
	require.NoError(t, err)
	_, err = io.ReadFull(sr, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))
}

func TestWriterHalfShutdownWriteHalfClosesTCPConn(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	_, sw := SplitStream(server)
	require.NoError(t, sw.ShutdownWrite())

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestClonesShareUnderlyingConnection(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	sr, sw := SplitStream(server)
	swClone := sw.Clone()

	_, err := swClone.Write([]byte("from-clone"))
	require.NoError(t, err)

	buf := make([]byte, len("from-clone"))
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "from-clone", string(buf))
	require.Same(t, sr.shared, sw.Clone().shared)
}
