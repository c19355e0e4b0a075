package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/orzchat/orzchat/pkg/protocol"
)

// outboundQueueSize bounds the per-connection outbound frame queue. A
// recipient that falls this many frames behind starts losing deliveries
// instead of stalling the senders' dispatch goroutines.
const outboundQueueSize = 64

// ErrSlowConsumer is returned when a frame cannot be queued because the
// recipient's outbound queue is full.
var ErrSlowConsumer = errors.New("outbound queue full")

// SafeConn wraps a duplex byte stream and owns its write side. Fan-out means
// many connection handlers write into the same socket concurrently; SafeConn
// funnels all writes through a bounded queue drained by a single writer
// goroutine, so frames never interleave on the wire and a stalled recipient
// never blocks a sender.
//
// Reads are not synchronized: only the owning connection handler reads.
type SafeConn struct {
	conn      io.ReadWriteCloser
	remote    string
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSafeConn wraps a stream and starts its writer goroutine.
func NewSafeConn(conn io.ReadWriteCloser, remote string) *SafeConn {
	sc := &SafeConn{
		conn:   conn,
		remote: remote,
		out:    make(chan []byte, outboundQueueSize),
		closed: make(chan struct{}),
	}
	go sc.writeLoop()
	return sc
}

// writeLoop drains the outbound queue. A write error closes the connection;
// the owning handler's blocking read then returns and tears the session down.
func (sc *SafeConn) writeLoop() {
	for {
		select {
		case data := <-sc.out:
			if _, err := sc.conn.Write(data); err != nil {
				sc.Close()
				return
			}
		case <-sc.closed:
			return
		}
	}
}

// WriteFrame encodes the frame and queues it for delivery without blocking.
// Returns ErrSlowConsumer if the queue is full and net.ErrClosed if the
// connection is gone; both are per-delivery failures the caller may log and
// move past.
func (sc *SafeConn) WriteFrame(frame *protocol.Frame) error {
	data := protocol.AppendFrame(make([]byte, 0, protocol.HeaderSize+len(frame.Payload)), frame)

	select {
	case <-sc.closed:
		return net.ErrClosed
	default:
	}

	select {
	case sc.out <- data:
		return nil
	case <-sc.closed:
		return net.ErrClosed
	default:
		return ErrSlowConsumer
	}
}

// WriteFrameSync encodes and writes the frame directly to the stream,
// bypassing the queue. Only safe while nothing can be queuing writes for this
// connection, i.e. before the session is registered. Used for the final ERROR
// on a connection that violated the handshake.
func (sc *SafeConn) WriteFrameSync(frame *protocol.Frame) error {
	select {
	case <-sc.closed:
		return net.ErrClosed
	default:
	}
	return protocol.EncodeFrame(sc.conn, frame)
}

// Read reads raw bytes from the stream. Only the owning handler calls this.
func (sc *SafeConn) Read(p []byte) (int, error) {
	return sc.conn.Read(p)
}

// Close closes the underlying stream. Idempotent.
func (sc *SafeConn) Close() error {
	var err error
	sc.closeOnce.Do(func() {
		close(sc.closed)
		err = sc.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote address string for logging.
func (sc *SafeConn) RemoteAddr() string {
	return sc.remote
}
