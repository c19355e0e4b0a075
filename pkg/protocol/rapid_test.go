package protocol

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

// TestFrameRoundTripRapid tests that any frame within limits encodes and
// decodes back to itself, consuming exactly the encoded length.
func TestFrameRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msgType := rapid.Byte().Draw(t, "type")
		payloadLen := rapid.IntRange(0, MaxPayloadSize).Draw(t, "payloadLen")
		payload := rapid.SliceOfN(rapid.Byte(), payloadLen, payloadLen).Draw(t, "payload")

		original := &Frame{Type: msgType, Payload: payload}
		encoded := AppendFrame(nil, original)

		decoded, consumed, err := DecodeFrame(encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if consumed != len(encoded) {
			t.Fatalf("consumed %d bytes, want %d", consumed, len(encoded))
		}
		if decoded.Type != original.Type {
			t.Fatalf("type mismatch: got %d, want %d", decoded.Type, original.Type)
		}
		if !bytes.Equal(decoded.Payload, original.Payload) {
			t.Fatalf("payload mismatch")
		}
	})
}

// TestReassemblyEquivalenceRapid tests that splitting a multi-frame byte
// stream at arbitrary boundaries never changes the decoded frame sequence.
func TestReassemblyEquivalenceRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frameCount := rapid.IntRange(1, 8).Draw(t, "frameCount")

		var stream []byte
		var want []*Frame
		for i := 0; i < frameCount; i++ {
			payloadLen := rapid.IntRange(0, 256).Draw(t, "payloadLen")
			frame := &Frame{
				Type:    rapid.Byte().Draw(t, "type"),
				Payload: rapid.SliceOfN(rapid.Byte(), payloadLen, payloadLen).Draw(t, "payload"),
			}
			want = append(want, frame)
			stream = AppendFrame(stream, frame)
		}

		// Split the stream at random boundaries.
		r := NewReassembler()
		var got []*Frame
		rest := stream
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunkLen")
			if err := r.Feed(rest[:n]); err != nil {
				t.Fatalf("feed failed: %v", err)
			}
			rest = rest[n:]
			for {
				frame, err := r.Next()
				if err != nil {
					t.Fatalf("next failed: %v", err)
				}
				if frame == nil {
					break
				}
				got = append(got, frame)
			}
		}

		if len(got) != len(want) {
			t.Fatalf("got %d frames, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i].Type != want[i].Type {
				t.Fatalf("frame %d type mismatch: got %d, want %d", i, got[i].Type, want[i].Type)
			}
			if !bytes.Equal(got[i].Payload, want[i].Payload) {
				t.Fatalf("frame %d payload mismatch", i)
			}
		}
	})
}

// TestTextRoundTripRapid tests UTF-16 text fields against arbitrary strings.
func TestTextRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[ -~]{0,64}`).Draw(t, "text")

		var buf bytes.Buffer
		if err := WriteText(&buf, s); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		decoded, err := ReadText(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if decoded != s {
			t.Fatalf("round trip mismatch: got %q, want %q", decoded, s)
		}
	})
}
