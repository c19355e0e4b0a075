package server

import (
	"errors"

	"github.com/orzchat/orzchat/pkg/protocol"
)

// connState is the per-connection protocol state.
type connState int

const (
	stateAwaitingLogin connState = iota
	stateActive
	stateClosed
)

var (
	// ErrClientDisconnecting is returned when the client sends a graceful
	// DISCONNECT; the connection loop exits cleanly.
	ErrClientDisconnecting = errors.New("client disconnecting")

	// errLoginViolation is returned when the first frame on a connection
	// is not LOGIN; an ERROR frame has already been queued and the
	// connection must close.
	errLoginViolation = errors.New("protocol violation during login")
)

// dispatcher is the per-connection state machine. It consumes decoded frames
// in read order (single-threaded per connection) and produces outbound frames
// for the sender and, on fan-out, for other sessions via their SafeConns.
type dispatcher struct {
	srv   *Server
	conn  *SafeConn
	state connState
	sess  *Session
	done  bool
}

func newDispatcher(srv *Server, conn *SafeConn) *dispatcher {
	return &dispatcher{srv: srv, conn: conn, state: stateAwaitingLogin}
}

// handleFrame executes one decoded frame. ErrClientDisconnecting and
// errLoginViolation terminate the connection loop; any other error is logged
// by the caller and the loop continues.
func (d *dispatcher) handleFrame(frame *protocol.Frame) error {
	switch d.state {
	case stateAwaitingLogin:
		return d.handleLogin(frame)
	case stateActive:
		return d.handleActive(frame)
	default:
		return nil
	}
}

// handleLogin accepts exactly one LOGIN frame. Anything else is a handshake
// violation: reply ERROR and close.
func (d *dispatcher) handleLogin(frame *protocol.Frame) error {
	if frame.Type != protocol.TypeLogin {
		errorLog.Printf("Conn %s: first frame was 0x%02X, not LOGIN", d.conn.RemoteAddr(), frame.Type)
		return d.rejectHandshake("expected LOGIN")
	}

	var msg protocol.LoginMessage
	if err := msg.Decode(frame.Payload); err != nil {
		errorLog.Printf("Conn %s: bad LOGIN payload: %v", d.conn.RemoteAddr(), err)
		return d.rejectHandshake("malformed LOGIN")
	}

	d.sess = d.srv.sessions.Allocate(msg.Nickname, d.conn)
	d.state = stateActive
	debugLog.Printf("User %d (%q) logged in from %s", d.sess.UserID, d.sess.Nickname, d.conn.RemoteAddr())

	return d.send(protocol.TypeLoginSuccess, &protocol.LoginSuccessMessage{
		UserID:   d.sess.UserID,
		Channels: d.srv.channels.IDs(),
	})
}

func (d *dispatcher) handleActive(frame *protocol.Frame) error {
	switch frame.Type {
	case protocol.TypeJoinChannel:
		return d.handleJoinChannel(frame)
	case protocol.TypeLeaveChannel:
		return d.handleLeaveChannel(frame)
	case protocol.TypeSendMsg:
		return d.handleSendMsg(frame)
	case protocol.TypeDisconnect:
		return d.handleDisconnect(frame)
	default:
		// Unknown or unexpected type: log and keep the connection.
		debugLog.Printf("User %d: ignoring frame type 0x%02X", d.sess.UserID, frame.Type)
		return nil
	}
}

// handleJoinChannel adds the sender to a channel and always acknowledges,
// whether or not the sender was already a member.
func (d *dispatcher) handleJoinChannel(frame *protocol.Frame) error {
	var msg protocol.JoinChannelMessage
	if err := msg.Decode(frame.Payload); err != nil {
		return err
	}

	if err := d.srv.channels.Join(msg.ChannelID, d.sess.UserID); err != nil {
		return d.send(protocol.TypeError, &protocol.ErrorMessage{
			Code:    protocol.ErrCodeInvalidChannel,
			Message: "cannot join the global channel",
		})
	}

	debugLog.Printf("User %d joined channel %d", d.sess.UserID, msg.ChannelID)
	return d.send(protocol.TypeJoinChannelSuccess, &protocol.JoinChannelSuccessMessage{
		UserID:    d.sess.UserID,
		ChannelID: msg.ChannelID,
	})
}

// handleLeaveChannel removes the sender from a channel if present and always
// acknowledges.
func (d *dispatcher) handleLeaveChannel(frame *protocol.Frame) error {
	var msg protocol.LeaveChannelMessage
	if err := msg.Decode(frame.Payload); err != nil {
		return err
	}

	d.srv.channels.Leave(msg.ChannelID, d.sess.UserID)

	debugLog.Printf("User %d left channel %d", d.sess.UserID, msg.ChannelID)
	return d.send(protocol.TypeLeaveChannelSuccess, &protocol.LeaveChannelSuccessMessage{
		UserID:    d.sess.UserID,
		ChannelID: msg.ChannelID,
	})
}

// handleSendMsg fans the message out to every recipient of the channel,
// excluding the sender. Channel 0 addresses all logged-in sessions. The
// sender identity on the outbound NEW_MSG comes from the session, not from
// whatever the client claimed in the payload. Delivery is best-effort and
// at-most-once: one failed recipient never aborts the rest.
func (d *dispatcher) handleSendMsg(frame *protocol.Frame) error {
	var msg protocol.SendMsgMessage
	if err := msg.Decode(frame.Payload); err != nil {
		return err
	}

	out, err := protocol.NewFrame(protocol.TypeNewMsg, &protocol.NewMsgMessage{
		UserID:    d.sess.UserID,
		ChannelID: msg.ChannelID,
		Nickname:  d.sess.Nickname,
		Message:   msg.Message,
	})
	if err != nil {
		return err
	}

	debugLog.Printf("User %d (%q) → channel %d: %d code units",
		d.sess.UserID, d.sess.Nickname, msg.ChannelID, len(msg.Message))

	if msg.ChannelID == protocol.GlobalChannelID {
		d.srv.sessions.ForEachSession(d.sess.UserID, func(recipient *Session) {
			d.deliver(recipient, out)
		})
		return nil
	}

	for _, memberID := range d.srv.channels.Members(msg.ChannelID) {
		if memberID == d.sess.UserID {
			continue
		}
		recipient, ok := d.srv.sessions.Get(memberID)
		if !ok {
			continue
		}
		d.deliver(recipient, out)
	}
	return nil
}

// deliver queues a frame on one recipient's connection, logging failures.
func (d *dispatcher) deliver(recipient *Session, frame *protocol.Frame) {
	if err := recipient.Conn.WriteFrame(frame); err != nil {
		errorLog.Printf("Delivery to user %d failed: %v", recipient.UserID, err)
		if d.srv.metrics != nil {
			d.srv.metrics.RecordDeliveryFailure()
		}
		return
	}
	if d.srv.metrics != nil {
		d.srv.metrics.RecordDelivery()
		d.srv.metrics.RecordFrameSent(protocol.MessageTypeName(frame.Type))
	}
}

// handleDisconnect deregisters the sender from both registries. No reply is
// sent; the connection loop exits and closes the socket.
func (d *dispatcher) handleDisconnect(frame *protocol.Frame) error {
	var msg protocol.DisconnectMessage
	if err := msg.Decode(frame.Payload); err != nil {
		return err
	}

	debugLog.Printf("User %d disconnecting", d.sess.UserID)
	d.teardown()
	d.state = stateClosed
	return ErrClientDisconnecting
}

// rejectHandshake sends the ERROR directly on the stream, skipping the
// outbound queue so the frame reaches the wire before the caller closes the
// connection. Nothing else can be writing here: the session was never
// registered, so no fan-out targets this connection.
func (d *dispatcher) rejectHandshake(reason string) error {
	frame, err := protocol.NewFrame(protocol.TypeError, &protocol.ErrorMessage{
		Code:    protocol.ErrCodeInvalidLoginSequence,
		Message: reason,
	})
	if err == nil {
		if werr := d.conn.WriteFrameSync(frame); werr == nil && d.srv.metrics != nil {
			d.srv.metrics.RecordFrameSent(protocol.MessageTypeName(protocol.TypeError))
		}
	}
	d.state = stateClosed
	return errLoginViolation
}

// send queues a reply frame on the dispatcher's own connection.
func (d *dispatcher) send(msgType uint8, msg protocol.ProtocolMessage) error {
	frame, err := protocol.NewFrame(msgType, msg)
	if err != nil {
		return err
	}
	if err := d.conn.WriteFrame(frame); err != nil {
		return err
	}
	if d.srv.metrics != nil {
		d.srv.metrics.RecordFrameSent(protocol.MessageTypeName(msgType))
	}
	return nil
}

// teardown removes the session from both registries. Idempotent; called on
// DISCONNECT and again by the connection loop's deferred cleanup.
func (d *dispatcher) teardown() {
	if d.done || d.sess == nil {
		return
	}
	d.done = true
	d.srv.channels.LeaveAll(d.sess.UserID)
	d.srv.sessions.Remove(d.sess.UserID)
}
