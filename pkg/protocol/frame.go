package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// Magic is the frame sentinel: the ASCII bytes "OrzC" read as a
	// little-endian 32-bit value. Every frame starts with it; anything
	// else means the stream is desynchronized.
	Magic uint32 = 0x437A724F

	// HeaderSize is the fixed header size: Magic(4) + Type(1) + PayloadLength(4).
	HeaderSize = 9

	// MaxPayloadSize is the maximum allowed payload size (4 KB, the
	// receive buffer size). A larger declared length is malformed, not
	// something to buffer.
	MaxPayloadSize = 4096
)

var (
	// ErrShortBuffer means the buffer does not yet hold a complete frame.
	// The caller must not advance its read cursor.
	ErrShortBuffer = errors.New("incomplete frame")

	// ErrBadMagic means the buffer does not start with the magic sentinel.
	ErrBadMagic = errors.New("bad frame magic")

	// ErrPayloadTooLarge means the header declares a payload larger than
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
)

// Frame represents one protocol frame.
// Format: [Magic (4 bytes)][Type (1 byte)][PayloadLength (4 bytes)][Payload (N bytes)]
// All integers little-endian.
type Frame struct {
	Type    uint8  // Message type (TypeLogin .. TypeError)
	Payload []byte // Type-specific payload
}

// DecodeFrame decodes one frame from the front of buf and returns it together
// with the number of bytes consumed, so the caller can slide a multi-frame
// buffer. Returns ErrShortBuffer when buf holds less than a complete frame,
// ErrBadMagic when the sentinel does not match, and ErrPayloadTooLarge when
// the declared payload length is insane. The payload is copied out of buf.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, ErrShortBuffer
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return nil, 0, ErrBadMagic
	}

	msgType := buf[4]
	payloadLen := binary.LittleEndian.Uint32(buf[5:9])
	if payloadLen > MaxPayloadSize {
		return nil, 0, ErrPayloadTooLarge
	}

	total := HeaderSize + int(payloadLen)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[HeaderSize:total])

	return &Frame{Type: msgType, Payload: payload}, total, nil
}

// AppendFrame appends the encoded frame to dst and returns the extended slice.
func AppendFrame(dst []byte, f *Frame) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = append(dst, f.Type)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(f.Payload)))
	return append(dst, f.Payload...)
}

// EncodeFrame writes the frame to w as a single Write call, so writers
// serialized at the io.Writer level cannot interleave frame bytes.
func EncodeFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, 0, HeaderSize+len(f.Payload))
	_, err := w.Write(AppendFrame(buf, f))
	return err
}

// NewFrame encodes msg and wraps it in a frame of the given type.
func NewFrame(msgType uint8, msg ProtocolMessage) (*Frame, error) {
	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	return &Frame{Type: msgType, Payload: payload}, nil
}
