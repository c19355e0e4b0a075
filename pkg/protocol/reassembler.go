package protocol

import "errors"

// MaxBufferedBytes bounds the reassembly buffer. A peer that sends this much
// without completing a frame is violating the protocol (the largest legal
// frame is HeaderSize+MaxPayloadSize bytes).
const MaxBufferedBytes = 64 * 1024

// ErrBufferOverflow means the peer overran the reassembly buffer without
// producing a decodable frame.
var ErrBufferOverflow = errors.New("reassembly buffer overflow")

// Reassembler recovers frame boundaries from an unstructured byte stream.
// Raw read chunks go in via Feed; complete frames come out via Next, with
// partial trailing bytes buffered until the next Feed.
//
// A Reassembler is not safe for concurrent use; each connection handler owns
// exactly one.
type Reassembler struct {
	buf []byte
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends a raw read chunk to the buffer. Returns ErrBufferOverflow if
// the buffered bytes would exceed MaxBufferedBytes; the caller must treat
// that as fatal for the connection.
func (r *Reassembler) Feed(chunk []byte) error {
	if len(r.buf)+len(chunk) > MaxBufferedBytes {
		return ErrBufferOverflow
	}
	r.buf = append(r.buf, chunk...)
	return nil
}

// Next decodes and removes the next complete frame from the buffer.
// Returns (nil, nil) when more bytes are needed. A decode failure
// (ErrBadMagic, ErrPayloadTooLarge) means the stream is desynchronized and
// the connection is unrecoverable.
func (r *Reassembler) Next() (*Frame, error) {
	if len(r.buf) == 0 {
		return nil, nil
	}

	frame, consumed, err := DecodeFrame(r.buf)
	if errors.Is(err, ErrShortBuffer) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Shift the unconsumed tail to the front, keeping the allocation.
	r.buf = r.buf[:copy(r.buf, r.buf[consumed:])]
	return frame, nil
}

// Buffered reports how many undecoded bytes are currently held.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}
