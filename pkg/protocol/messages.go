package protocol

import (
	"bytes"
	"io"
)

// ProtocolMessage interface - all protocol payloads implement this
type ProtocolMessage interface {
	// EncodeTo serializes the payload directly to a writer
	EncodeTo(w io.Writer) error
	// Encode serializes the payload to bytes (convenience wrapper)
	Encode() ([]byte, error)
	// Decode deserializes the payload from bytes
	Decode(payload []byte) error
}

// Message type constants (Client → Server)
const (
	TypeLogin        = 0x00
	TypeJoinChannel  = 0x01
	TypeSendMsg      = 0x02
	TypeLeaveChannel = 0x03
	TypeDisconnect   = 0x04
)

// Message type constants (Server → Client)
const (
	TypeLoginSuccess        = 0x05
	TypeJoinChannelSuccess  = 0x06
	TypeNewMsg              = 0x07
	TypeLeaveChannelSuccess = 0x08
	TypeError               = 0x09
)

// GlobalChannelID is the implicit broadcast channel whose membership is
// every logged-in session. It is never joined explicitly and never listed.
const GlobalChannelID = 0

// Error codes carried by ErrorMessage
const (
	ErrCodeInvalidLoginSequence uint32 = 1 // first frame on a connection was not LOGIN
	ErrCodeInvalidChannel       uint32 = 2 // e.g. explicit join of the global channel
)

// LoginMessage (0x00) - authenticate with a nickname
type LoginMessage struct {
	Nickname string
}

func (m *LoginMessage) EncodeTo(w io.Writer) error {
	return WriteNickname(w, m.Nickname)
}

func (m *LoginMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *LoginMessage) Decode(payload []byte) error {
	nickname, err := ReadNickname(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.Nickname = nickname
	return nil
}

// LoginSuccessMessage (0x05) - login accepted, carries the assigned user id
// and the current channel list (channel 0 is implicit and never listed)
type LoginSuccessMessage struct {
	UserID   uint32
	Channels []uint32
}

func (m *LoginSuccessMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.UserID); err != nil {
		return err
	}
	if err := WriteUint32(w, uint32(len(m.Channels))); err != nil {
		return err
	}
	for _, id := range m.Channels {
		if err := WriteUint32(w, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *LoginSuccessMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *LoginSuccessMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	userID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	count, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	if int(count) > buf.Len()/4 {
		return io.ErrUnexpectedEOF
	}
	channels := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := ReadUint32(buf)
		if err != nil {
			return err
		}
		channels = append(channels, id)
	}

	m.UserID = userID
	m.Channels = channels
	return nil
}

// JoinChannelMessage (0x01) - join a channel, creating it if absent
type JoinChannelMessage struct {
	UserID    uint32
	ChannelID uint32
}

func (m *JoinChannelMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.UserID); err != nil {
		return err
	}
	return WriteUint32(w, m.ChannelID)
}

func (m *JoinChannelMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *JoinChannelMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	userID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	channelID, err := ReadUint32(buf)
	if err != nil {
		return err
	}

	m.UserID = userID
	m.ChannelID = channelID
	return nil
}

// The join/leave acknowledgements and LEAVE_CHANNEL share the
// (user_id, channel_id) payload layout, like the original wire format.
type (
	// JoinChannelSuccessMessage (0x06)
	JoinChannelSuccessMessage = JoinChannelMessage
	// LeaveChannelMessage (0x03)
	LeaveChannelMessage = JoinChannelMessage
	// LeaveChannelSuccessMessage (0x08)
	LeaveChannelSuccessMessage = JoinChannelMessage
)

// SendMsgMessage (0x02) - send a chat message to a channel.
// Channel 0 addresses every logged-in session.
type SendMsgMessage struct {
	UserID    uint32
	ChannelID uint32
	Nickname  string
	Message   string
}

// NewMsgMessage (0x07) shares the SendMsg layout, re-tagged by frame type.
type NewMsgMessage = SendMsgMessage

func (m *SendMsgMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.UserID); err != nil {
		return err
	}
	if err := WriteUint32(w, m.ChannelID); err != nil {
		return err
	}
	if err := WriteNickname(w, m.Nickname); err != nil {
		return err
	}
	return WriteText(w, m.Message)
}

func (m *SendMsgMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SendMsgMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	userID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	channelID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	nickname, err := ReadNickname(buf)
	if err != nil {
		return err
	}
	message, err := ReadText(buf)
	if err != nil {
		return err
	}

	m.UserID = userID
	m.ChannelID = channelID
	m.Nickname = nickname
	m.Message = message
	return nil
}

// DisconnectMessage (0x04) - graceful disconnect, no reply is sent
type DisconnectMessage struct {
	UserID uint32
}

func (m *DisconnectMessage) EncodeTo(w io.Writer) error {
	return WriteUint32(w, m.UserID)
}

func (m *DisconnectMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *DisconnectMessage) Decode(payload []byte) error {
	userID, err := ReadUint32(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.UserID = userID
	return nil
}

// ErrorMessage (0x09) - numeric error code plus optional trailing text.
// The text has no length prefix; it runs to the end of the payload.
type ErrorMessage struct {
	Code    uint32
	Message string
}

func (m *ErrorMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.Code); err != nil {
		return err
	}
	if m.Message == "" {
		return nil
	}
	return writeRawText(w, m.Message)
}

func (m *ErrorMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ErrorMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	code, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	rest := make([]byte, buf.Len())
	if _, err := io.ReadFull(buf, rest); err != nil && err != io.EOF {
		return err
	}
	message, err := decodeRawText(rest)
	if err != nil {
		return err
	}

	m.Code = code
	m.Message = message
	return nil
}

// MessageTypeName returns a short name for a frame type, for logs and metrics.
func MessageTypeName(msgType uint8) string {
	switch msgType {
	case TypeLogin:
		return "LOGIN"
	case TypeJoinChannel:
		return "JOIN_CHANNEL"
	case TypeSendMsg:
		return "SEND_MSG"
	case TypeLeaveChannel:
		return "LEAVE_CHANNEL"
	case TypeDisconnect:
		return "DISCONNECT"
	case TypeLoginSuccess:
		return "LOGIN_SUCCESS"
	case TypeJoinChannelSuccess:
		return "JOIN_CHANNEL_SUCCESS"
	case TypeNewMsg:
		return "NEW_MSG"
	case TypeLeaveChannelSuccess:
		return "LEAVE_CHANNEL_SUCCESS"
	case TypeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
