package msgproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Codec encodes and decodes messages against a fixed payload capacity.
// The zero value uses DefaultCapacity. A Codec holds no mutable state and
// is safe for concurrent use.
type Codec struct {
	capacity int
}

// NewCodec returns a codec for receive buffers of the given payload
// capacity. A non-positive capacity selects DefaultCapacity.
func NewCodec(capacity int) Codec {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > math.MaxInt32 {
		capacity = math.MaxInt32
	}
	return Codec{capacity: capacity}
}

// Capacity returns the payload capacity the codec validates against.
func (c Codec) Capacity() int {
	if c.capacity <= 0 {
		return DefaultCapacity
	}
	return c.capacity
}

// Encode serializes m into exactly HeaderSize+m.Length bytes.
func (c Codec) Encode(m Message) ([]byte, error) {
	if err := checkLength(m.Length, c.Capacity()); err != nil {
		return nil, err
	}
	if len(m.Payload) < m.Length {
		return nil, errors.Wrapf(ErrInvalidLength,
			"length %d exceeds payload of %d bytes", m.Length, len(m.Payload))
	}

	buf := make([]byte, HeaderSize+m.Length)
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(m.Type)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(int32(m.Length)))
	copy(buf[HeaderSize:], m.Payload[:m.Length])
	return buf, nil
}

// Decode parses one datagram. The returned payload is a fresh slice of
// exactly Length bytes. Bytes past HeaderSize+Length are ignored.
func (c Codec) Decode(data []byte) (Message, error) {
	typ, length, err := c.decodeHeader(data, c.Capacity())
	if err != nil {
		return Message{}, err
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+length])
	return Message{Type: typ, Length: length, Payload: payload}, nil
}

// DecodeInto parses one datagram into buf, taking len(buf) as the
// capacity. Nothing is written past len(buf); the returned payload
// aliases buf.
func (c Codec) DecodeInto(data, buf []byte) (Message, error) {
	typ, length, err := c.decodeHeader(data, len(buf))
	if err != nil {
		return Message{}, err
	}

	n := copy(buf[:length], data[HeaderSize:HeaderSize+length])
	return Message{Type: typ, Length: n, Payload: buf[:n]}, nil
}

func (c Codec) decodeHeader(data []byte, capacity int) (MessageType, int, error) {
	if len(data) < HeaderSize {
		return 0, 0, errors.Wrapf(ErrTruncated,
			"header needs %d bytes, got %d", HeaderSize, len(data))
	}

	typ := MessageType(int32(binary.BigEndian.Uint32(data[0:4])))
	length := int(int32(binary.BigEndian.Uint32(data[4:8])))

	if err := checkLength(length, capacity); err != nil {
		return 0, 0, err
	}
	if len(data) < HeaderSize+length {
		return 0, 0, errors.Wrapf(ErrTruncated,
			"declared length %d, got %d payload bytes", length, len(data)-HeaderSize)
	}
	return typ, length, nil
}

// checkLength enforces 0 <= length < capacity.
func checkLength(length, capacity int) error {
	if length < 0 || length >= capacity {
		return errors.Wrapf(ErrInvalidLength, "length %d, capacity %d", length, capacity)
	}
	return nil
}

// Encode serializes m against the given payload capacity.
func Encode(m Message, capacity int) ([]byte, error) {
	return NewCodec(capacity).Encode(m)
}

// Decode parses data against the given payload capacity.
func Decode(data []byte, capacity int) (Message, error) {
	return NewCodec(capacity).Decode(data)
}

// Display renders m for humans. The payload is read up to Length only;
// trailing NUL terminators are dropped. Control characters and invalid
// UTF-8 are escaped the way %q escapes them.
func Display(m Message) string {
	return fmt.Sprintf("Type: %d, Length: %d, Payload: %s",
		int32(m.Type), m.Length, escape(bytes.TrimRight(m.Body(), "\x00")))
}

func escape(p []byte) string {
	var b strings.Builder
	b.Grow(len(p))
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, `\x%02x`, p[0])
		case unicode.IsPrint(r):
			b.WriteRune(r)
		default:
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
		}
		p = p[size:]
	}
	return b.String()
}
