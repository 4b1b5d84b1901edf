package gows

import "unicode/utf8"

// MessageKind identifies which variant a Message holds.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageBinary
	MessagePing
	MessagePong
)

// Message is an application-visible WebSocket payload, as defined in
// spec.md §3. Ping/Pong variants are for sending (see ToFrame);
// MessageFromFrame never produces them, so incoming Ping and Pong frames
// are never delivered as messages (the connection's special-frame handler
// answers Pings itself, per spec.md §4.4).
type Message struct {
	Kind MessageKind
	Text string
	Data []byte
}

func TextMessage(s string) Message   { return Message{Kind: MessageText, Text: s} }
func BinaryMessage(b []byte) Message { return Message{Kind: MessageBinary, Data: b} }
func PingMessage() Message           { return Message{Kind: MessagePing} }
func PongMessage() Message           { return Message{Kind: MessagePong} }

// ToFrame converts a Message to its wire Frame, per spec.md §4.1.
// Binary(b) -> {Binary, b}; Text(s) -> {Text, utf8(s)}; Ping/Pong -> empty
// control frames.
func (m Message) ToFrame() Frame {
	switch m.Kind {
	case MessageBinary:
		return Frame{Fin: true, OpCode: OpBinary, ApplicationData: m.Data}
	case MessagePing:
		return NewControlFrame(OpPing, nil)
	case MessagePong:
		return NewControlFrame(OpPong, nil)
	default: // MessageText
		return Frame{Fin: true, OpCode: OpText, ApplicationData: []byte(m.Text)}
	}
}

// MessageFromFrame converts a decoded Frame into an application Message.
// A Binary frame becomes a Binary message; a Text frame becomes a Text
// message after UTF-8 validation; any other opcode fails
// ErrCantConvertToMessage (spec.md §4.1).
func MessageFromFrame(f Frame) (Message, error) {
	switch f.OpCode {
	case OpBinary:
		return BinaryMessage(f.ApplicationData), nil
	case OpText:
		if !utf8.Valid(f.ApplicationData) {
			return Message{}, ErrCantConvertToMessage
		}
		return TextMessage(string(f.ApplicationData)), nil
	default:
		return Message{}, ErrCantConvertToMessage
	}
}
