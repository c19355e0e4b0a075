package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orzchat/orzchat/pkg/protocol"
)

const loremIpsum = "Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua"

var loremWords = strings.Fields(loremIpsum)

// Stats tracks load test counters
type Stats struct {
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	sendFailures     atomic.Int64
	connectionErrors atomic.Int64
}

func main() {
	addr := flag.String("addr", "localhost:12345", "server address")
	clients := flag.Int("clients", 50, "number of concurrent clients")
	channel := flag.Uint("channel", 1024, "channel id to join and flood")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rate := flag.Float64("rate", 1.0, "messages per second per client")
	flag.Parse()

	log.Printf("Starting load test: %d clients against %s, channel %d, %.1f msg/s each for %s",
		*clients, *addr, *channel, *rate, *duration)

	stats := &Stats{}
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runClient(n, *addr, uint32(*channel), *rate, stop, stats)
		}(i)
		// Stagger connections so the server isn't hit with a thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	// Periodic progress report
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Printf("Progress: %d sent, %d received, %d send failures, %d connection errors",
					stats.messagesSent.Load(), stats.messagesReceived.Load(),
					stats.sendFailures.Load(), stats.connectionErrors.Load())
			case <-stop:
				return
			}
		}
	}()

	time.Sleep(*duration)
	close(stop)
	wg.Wait()
	<-reportDone

	sent := stats.messagesSent.Load()
	received := stats.messagesReceived.Load()
	log.Printf("Load test complete")
	log.Printf("  Messages sent:     %d (%.1f/s)", sent, float64(sent)/duration.Seconds())
	log.Printf("  Messages received: %d", received)
	log.Printf("  Send failures:     %d", stats.sendFailures.Load())
	log.Printf("  Connection errors: %d", stats.connectionErrors.Load())
	if sent > 0 {
		// Each message fans out to clients-1 recipients
		expected := sent * int64(*clients-1)
		log.Printf("  Delivery ratio:    %.1f%%", 100*float64(received)/float64(expected))
	}
}

// runClient logs in, joins the channel and sends random messages until stop
// closes. A reader goroutine counts NEW_MSG deliveries.
func runClient(n int, addr string, channel uint32, rate float64, stop chan struct{}, stats *Stats) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		stats.connectionErrors.Add(1)
		return
	}
	defer conn.Close()

	nickname := fmt.Sprintf("loadtest-%d", n)

	send := func(msgType uint8, msg protocol.ProtocolMessage) error {
		frame, err := protocol.NewFrame(msgType, msg)
		if err != nil {
			return err
		}
		return protocol.EncodeFrame(conn, frame)
	}

	if err := send(protocol.TypeLogin, &protocol.LoginMessage{Nickname: nickname}); err != nil {
		stats.connectionErrors.Add(1)
		return
	}

	// Reader goroutine: count NEW_MSG frames, capture the assigned user id
	var userID atomic.Uint32
	loggedIn := make(chan struct{})
	go func() {
		r := protocol.NewReassembler()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if err := r.Feed(buf[:n]); err != nil {
					return
				}
				for {
					frame, err := r.Next()
					if err != nil || frame == nil {
						if err != nil {
							return
						}
						break
					}
					switch frame.Type {
					case protocol.TypeLoginSuccess:
						var msg protocol.LoginSuccessMessage
						if msg.Decode(frame.Payload) == nil {
							userID.Store(msg.UserID)
							close(loggedIn)
						}
					case protocol.TypeNewMsg:
						stats.messagesReceived.Add(1)
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()

	select {
	case <-loggedIn:
	case <-time.After(5 * time.Second):
		stats.connectionErrors.Add(1)
		return
	case <-stop:
		return
	}

	if err := send(protocol.TypeJoinChannel, &protocol.JoinChannelMessage{
		UserID:    userID.Load(),
		ChannelID: channel,
	}); err != nil {
		stats.connectionErrors.Add(1)
		return
	}

	interval := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			text := randomMessage()
			err := send(protocol.TypeSendMsg, &protocol.SendMsgMessage{
				UserID:    userID.Load(),
				ChannelID: channel,
				Nickname:  nickname,
				Message:   text,
			})
			if err != nil {
				stats.sendFailures.Add(1)
				return
			}
			stats.messagesSent.Add(1)
		case <-stop:
			send(protocol.TypeDisconnect, &protocol.DisconnectMessage{UserID: userID.Load()})
			return
		}
	}
}

func randomMessage() string {
	count := 3 + rand.Intn(10)
	words := make([]string, count)
	for i := range words {
		words[i] = loremWords[rand.Intn(len(loremWords))]
	}
	return strings.Join(words, " ")
}
