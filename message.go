// Package msgproto implements a small request/response message protocol
// carried over UDP datagrams.
//
// A message is a fixed 8 byte header (type and payload length, both
// big-endian int32) followed by exactly length payload bytes. Decoding
// validates the header against the receiver's buffer capacity before any
// payload byte is copied, so a malformed or truncated datagram is rejected
// rather than misread.
package msgproto

import (
	"bytes"
	"fmt"
)

// MessageType identifies the semantic role of a message.
// Any int32 is valid on the wire; only TypeRequest and TypeResponse are
// interpreted.
type MessageType int32

const (
	TypeRequest  MessageType = 1
	TypeResponse MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	default:
		return fmt.Sprintf("reserved(%d)", int32(t))
	}
}

const (
	// HeaderSize is the encoded size of the type and length fields.
	HeaderSize = 8
	// DefaultCapacity is the payload capacity of a receive buffer.
	DefaultCapacity = 1024
)

// Message is one protocol unit. Only the first Length bytes of Payload
// are meaningful.
type Message struct {
	Type    MessageType
	Length  int
	Payload []byte
}

// NewMessage returns a message of the given type whose Length is len(payload).
func NewMessage(typ MessageType, payload []byte) Message {
	return Message{
		Type:    typ,
		Length:  len(payload),
		Payload: payload,
	}
}

// Body returns the meaningful part of the payload. It never indexes past
// the end of Payload, even for a hand-built message with a bad Length.
func (m Message) Body() []byte {
	n := m.Length
	if n < 0 {
		n = 0
	}
	if n > len(m.Payload) {
		n = len(m.Payload)
	}
	return m.Payload[:n]
}

// Equal reports whether m and other carry the same type, length and body.
func (m Message) Equal(other Message) bool {
	return m.Type == other.Type &&
		m.Length == other.Length &&
		bytes.Equal(m.Body(), other.Body())
}

// WireSize is the number of bytes Encode produces for m.
func (m Message) WireSize() int {
	return HeaderSize + m.Length
}

func (m Message) String() string {
	return Display(m)
}
