package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		nickname string
	}{
		{"ascii", "alice"},
		{"empty", ""},
		{"max length", strings.Repeat("x", NicknameUnits)},
		{"non-latin", "日本語のニックネーム"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &LoginMessage{Nickname: tt.nickname}
			payload, err := msg.Encode()
			require.NoError(t, err)

			// Fixed width: 32 UTF-16 code units regardless of content.
			assert.Len(t, payload, NicknameUnits*2)

			var decoded LoginMessage
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.nickname, decoded.Nickname)
		})
	}
}

func TestLoginNicknameTooLong(t *testing.T) {
	msg := &LoginMessage{Nickname: strings.Repeat("x", NicknameUnits+1)}
	_, err := msg.Encode()
	assert.ErrorIs(t, err, ErrNicknameTooLong)
}

func TestLoginTruncatedPayload(t *testing.T) {
	var decoded LoginMessage
	assert.Error(t, decoded.Decode(make([]byte, NicknameUnits)))
}

func TestLoginSuccessRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  LoginSuccessMessage
	}{
		{"seed channels", LoginSuccessMessage{UserID: 0, Channels: []uint32{1024}}},
		{"many channels", LoginSuccessMessage{UserID: 7, Channels: []uint32{1, 2, 3, 1024, 4096}}},
		{"no channels", LoginSuccessMessage{UserID: 42, Channels: []uint32{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Encode()
			require.NoError(t, err)
			assert.Len(t, payload, 8+4*len(tt.msg.Channels))

			var decoded LoginSuccessMessage
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.msg.UserID, decoded.UserID)
			assert.Equal(t, tt.msg.Channels, decoded.Channels)
		})
	}
}

func TestLoginSuccessLyingChannelCount(t *testing.T) {
	msg := &LoginSuccessMessage{UserID: 1, Channels: []uint32{10}}
	payload, err := msg.Encode()
	require.NoError(t, err)

	// Claim more channels than the payload carries.
	payload[4] = 200
	var decoded LoginSuccessMessage
	assert.Error(t, decoded.Decode(payload))
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	msg := &JoinChannelMessage{UserID: 3, ChannelID: 1024}
	payload, err := msg.Encode()
	require.NoError(t, err)
	assert.Len(t, payload, 8)

	var decoded JoinChannelMessage
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, *msg, decoded)

	var truncated JoinChannelMessage
	assert.Error(t, truncated.Decode(payload[:7]))
}

func TestSendMsgRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  SendMsgMessage
	}{
		{"simple", SendMsgMessage{UserID: 0, ChannelID: 5, Nickname: "alice", Message: "hi"}},
		{"empty message", SendMsgMessage{UserID: 1, ChannelID: 0, Nickname: "bob", Message: ""}},
		{"unicode", SendMsgMessage{UserID: 2, ChannelID: 9, Nickname: "café", Message: "добрый день"}},
		{"max nickname", SendMsgMessage{UserID: 3, ChannelID: 1, Nickname: strings.Repeat("n", NicknameUnits), Message: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Encode()
			require.NoError(t, err)

			var decoded SendMsgMessage
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestSendMsgDeclaredLengthIncludesTerminator(t *testing.T) {
	msg := &SendMsgMessage{UserID: 0, ChannelID: 0, Nickname: "a", Message: "hi"}
	payload, err := msg.Encode()
	require.NoError(t, err)

	// user_id(4) + channel_id(4) + nickname(64), then msg_length.
	lengthOffset := 8 + NicknameUnits*2
	declared := uint32(payload[lengthOffset]) |
		uint32(payload[lengthOffset+1])<<8 |
		uint32(payload[lengthOffset+2])<<16 |
		uint32(payload[lengthOffset+3])<<24
	assert.Equal(t, uint32(3), declared, "2 code units plus NUL terminator")

	// Terminator is on the wire.
	assert.Equal(t, byte(0), payload[len(payload)-1])
	assert.Equal(t, byte(0), payload[len(payload)-2])
}

func TestSendMsgTooLong(t *testing.T) {
	msg := &SendMsgMessage{Nickname: "a", Message: strings.Repeat("m", MaxTextUnits)}
	_, err := msg.Encode()
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestDisconnectRoundTrip(t *testing.T) {
	msg := &DisconnectMessage{UserID: 12}
	payload, err := msg.Encode()
	require.NoError(t, err)
	assert.Len(t, payload, 4)

	var decoded DisconnectMessage
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, uint32(12), decoded.UserID)
}

func TestErrorRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ErrorMessage
	}{
		{"code only", ErrorMessage{Code: ErrCodeInvalidLoginSequence}},
		{"with text", ErrorMessage{Code: ErrCodeInvalidChannel, Message: "cannot join the global channel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.msg.Encode()
			require.NoError(t, err)

			var decoded ErrorMessage
			require.NoError(t, decoded.Decode(payload))
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestErrorOddTrailingBytes(t *testing.T) {
	msg := &ErrorMessage{Code: 1, Message: "x"}
	payload, err := msg.Encode()
	require.NoError(t, err)

	var decoded ErrorMessage
	assert.ErrorIs(t, decoded.Decode(payload[:len(payload)-1]), ErrOddTextLength)
}

func TestMessageTypeName(t *testing.T) {
	assert.Equal(t, "LOGIN", MessageTypeName(TypeLogin))
	assert.Equal(t, "NEW_MSG", MessageTypeName(TypeNewMsg))
	assert.Equal(t, "UNKNOWN", MessageTypeName(0x7F))
}
