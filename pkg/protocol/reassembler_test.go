package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames() []*Frame {
	login, _ := NewFrame(TypeLogin, &LoginMessage{Nickname: "alice"})
	join, _ := NewFrame(TypeJoinChannel, &JoinChannelMessage{UserID: 0, ChannelID: 1024})
	send, _ := NewFrame(TypeSendMsg, &SendMsgMessage{UserID: 0, ChannelID: 1024, Nickname: "alice", Message: "hello"})
	return []*Frame{login, join, send}
}

func drainAll(t *testing.T, r *Reassembler) []*Frame {
	t.Helper()
	var frames []*Frame
	for {
		frame, err := r.Next()
		require.NoError(t, err)
		if frame == nil {
			return frames
		}
		frames = append(frames, frame)
	}
}

func TestReassemblerSingleChunk(t *testing.T) {
	var stream []byte
	want := testFrames()
	for _, f := range want {
		stream = AppendFrame(stream, f)
	}

	r := NewReassembler()
	require.NoError(t, r.Feed(stream))

	got := drainAll(t, r)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Type, got[i].Type)
		assert.Equal(t, want[i].Payload, got[i].Payload)
	}
	assert.Zero(t, r.Buffered())
}

func TestReassemblerByteByByte(t *testing.T) {
	var stream []byte
	want := testFrames()
	for _, f := range want {
		stream = AppendFrame(stream, f)
	}

	r := NewReassembler()
	var got []*Frame
	for _, b := range stream {
		require.NoError(t, r.Feed([]byte{b}))
		got = append(got, drainAll(t, r)...)
	}

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Type, got[i].Type)
		assert.Equal(t, want[i].Payload, got[i].Payload)
	}
}

func TestReassemblerPartialFrameStaysBuffered(t *testing.T) {
	frame, err := NewFrame(TypeSendMsg, &SendMsgMessage{Nickname: "a", Message: "hello"})
	require.NoError(t, err)
	stream := AppendFrame(nil, frame)

	r := NewReassembler()
	require.NoError(t, r.Feed(stream[:HeaderSize+3]))

	got, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, HeaderSize+3, r.Buffered())

	require.NoError(t, r.Feed(stream[HeaderSize+3:]))
	got, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, frame.Payload, got.Payload)
}

func TestReassemblerBadMagicIsFatal(t *testing.T) {
	stream := AppendFrame(nil, &Frame{Type: TypeLogin, Payload: []byte{}})
	binary.LittleEndian.PutUint32(stream[0:4], 0xDEADBEEF)

	r := NewReassembler()
	require.NoError(t, r.Feed(stream))

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReassemblerOversizedLengthIsFatal(t *testing.T) {
	stream := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(stream[0:4], Magic)
	stream[4] = TypeSendMsg
	binary.LittleEndian.PutUint32(stream[5:9], MaxPayloadSize+1)

	r := NewReassembler()
	require.NoError(t, r.Feed(stream))

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReassemblerOverflow(t *testing.T) {
	r := NewReassembler()
	require.NoError(t, r.Feed(make([]byte, MaxBufferedBytes)))
	assert.ErrorIs(t, r.Feed([]byte{0}), ErrBufferOverflow)
}
