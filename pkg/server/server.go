package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/orzchat/orzchat/pkg/protocol"
)

var (
	errorLog *log.Logger
	debugLog *log.Logger
)

func init() {
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
}

// EnableDebugLogging routes debug output to stderr.
func EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags)
	debugLog.Println("Debug logging enabled")
}

// Server represents the OrzChat server
type Server struct {
	config      ServerConfig
	listener    net.Listener
	sshListener net.Listener
	httpServer  *http.Server
	sessions    *SessionRegistry
	channels    *ChannelRegistry
	metrics     *Metrics
	shutdown    chan struct{}
	wg          sync.WaitGroup
	startTime   time.Time
}

// NewServer creates a new server instance. The channel list is the union of
// the configured seed channels and whatever the store already persisted; a
// nil store disables persistence.
func NewServer(config ServerConfig, store ChannelStore) (*Server, error) {
	seed := append([]uint32(nil), config.SeedChannels...)
	if store != nil {
		persisted, err := store.ListChannelIDs()
		if err != nil {
			return nil, fmt.Errorf("failed to load channel list: %w", err)
		}
		seed = append(seed, persisted...)
	}

	metrics := NewMetrics()
	sessions := NewSessionRegistry()
	sessions.SetMetrics(metrics)

	return &Server{
		config:    config,
		sessions:  sessions,
		channels:  NewChannelRegistry(seed, store),
		metrics:   metrics,
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}, nil
}

// Start starts the TCP listener and, when configured, the SSH and HTTP
// listeners. Returns once all listeners are accepting.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	log.Printf("TCP server listening on %s", listener.Addr())

	if s.config.SSHPort > 0 {
		if err := s.startSSHServer(); err != nil {
			s.listener.Close()
			return fmt.Errorf("failed to start SSH server: %w", err)
		}
	}

	// HTTP server carries /metrics and the WebSocket transport
	if s.config.HTTPPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		mux.HandleFunc("/ws", s.HandleWebSocket)
		s.httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", s.config.HTTPPort),
			Handler: mux,
		}
		go func() {
			log.Printf("HTTP server listening on %s (/metrics, /ws)", s.httpServer.Addr)
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	s.wg.Add(1)
	go s.metricsLoggingLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the TCP listener address. Useful for tests that listen on an
// ephemeral port.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	log.Println("Graceful shutdown initiated...")

	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	if s.sshListener != nil {
		s.sshListener.Close()
		s.sshListener = nil
	}
	if s.httpServer != nil {
		s.httpServer.Close()
		s.httpServer = nil
	}

	s.sessions.CloseAll()
	s.wg.Wait()

	log.Println("Graceful shutdown complete")
	return nil
}

// acceptLoop accepts incoming TCP connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection wraps a raw TCP connection and runs the frame loop.
func (s *Server) handleConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	debugLog.Printf("New connection from %s", conn.RemoteAddr())
	s.serveStream(NewSafeConn(conn, conn.RemoteAddr().String()))
}

// serveStream runs the read loop for one connection, regardless of transport
// (TCP, SSH channel, WebSocket). It reassembles frames from the byte stream
// and feeds them to the connection's dispatcher until the stream ends or a
// fatal protocol error occurs. Frames are handled strictly in read order.
func (s *Server) serveStream(conn *SafeConn) {
	d := newDispatcher(s, conn)
	defer func() {
		d.teardown()
		conn.Close()
		debugLog.Printf("Connection from %s closed", conn.RemoteAddr())
	}()

	reassembler := protocol.NewReassembler()
	readBuf := make([]byte, 4096)

	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			if err := reassembler.Feed(readBuf[:n]); err != nil {
				errorLog.Printf("Conn %s: %v", conn.RemoteAddr(), err)
				return
			}
			for {
				frame, err := reassembler.Next()
				if err != nil {
					// Bad magic or oversized length: the stream is
					// unrecoverable, drop the connection.
					errorLog.Printf("Conn %s: fatal decode error: %v", conn.RemoteAddr(), err)
					return
				}
				if frame == nil {
					break
				}

				s.metrics.RecordFrameReceived(protocol.MessageTypeName(frame.Type))
				if err := d.handleFrame(frame); err != nil {
					if errors.Is(err, ErrClientDisconnecting) || errors.Is(err, errLoginViolation) {
						return
					}
					errorLog.Printf("Conn %s: handler error: %v", conn.RemoteAddr(), err)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				debugLog.Printf("Conn %s: read error: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// metricsLoggingLoop logs a one-line status summary every 30 seconds.
func (s *Server) metricsLoggingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Printf("Status: %d sessions, %d channels, uptime %s",
				s.sessions.Count(), len(s.channels.IDs()), time.Since(s.startTime).Round(time.Second))
		case <-s.shutdown:
			return
		}
	}
}
