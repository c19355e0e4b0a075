package server

import (
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The binary protocol carries its own framing and identity; any origin
	// may connect, same as plain TCP.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades an HTTP request and serves the binary protocol
// over WebSocket binary messages. Message boundaries are ignored: the
// payloads form one byte stream, reassembled like any other transport.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errorLog.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	debugLog.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.serveStream(NewSafeConn(&wsStream{ws: ws}, r.RemoteAddr+" (ws)"))
}

// wsStream adapts a WebSocket connection to io.ReadWriteCloser. Reads drain
// binary messages into an internal buffer; each Write becomes one binary
// message.
type wsStream struct {
	ws      *websocket.Conn
	readBuf []byte

	writeMu sync.Mutex
}

func (c *wsStream) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, io.EOF
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.readBuf = data
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *wsStream) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsStream) Close() error {
	return c.ws.Close()
}
