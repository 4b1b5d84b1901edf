package gows

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageToFrameAndBack(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"text", TextMessage("hello there")},
		{"binary", BinaryMessage([]byte{1, 2, 3, 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MessageFromFrame(tt.msg.ToFrame())
			require.NoError(t, err)
			require.Equal(t, tt.msg, got)
		})
	}
}

func TestPingPongFramesAreEmptyControlFrames(t *testing.T) {
	for _, m := range []Message{PingMessage(), PongMessage()} {
		f := m.ToFrame()
		require.True(t, f.Fin)
		require.True(t, f.OpCode.IsControl())
		require.Empty(t, f.ApplicationData)
	}
}

func TestMessageFromFrameRejectsInvalidUTF8(t *testing.T) {
	f := Frame{Fin: true, OpCode: OpText, ApplicationData: []byte{0xff, 0xfe, 0xfd}}
	_, err := MessageFromFrame(f)
	require.ErrorIs(t, err, ErrCantConvertToMessage)
}

func TestMessageFromFrameRejectsControlOpcodes(t *testing.T) {
	_, err := MessageFromFrame(NewControlFrame(OpPing, nil))
	require.ErrorIs(t, err, ErrCantConvertToMessage)
}
