// Package relay streams engine events to connected display clients over
// TCP. Frames are length-prefixed MessagePack, the compact format the
// in-car head units speak.
package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"github.com/vmihailenco/msgpack/v5"
)

// Sink fans engine events out to every connected client
type Sink struct {
	listenAddr string
	listener   net.Listener

	clientsMu sync.Mutex
	clients   map[net.Conn]chan []byte
}

// envelope wraps an event with its name so clients can decode the payload
// without trial and error.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Clients that fall this many frames behind are disconnected rather than
// allowed to stall the fan-out.
const clientBuffer = 32

// New sets up a new event relay sink
func New(cfg *config.RelayData) (*Sink, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("relay requires a listen address")
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on %s: %w", cfg.ListenAddr, err)
	}

	return &Sink{
		listenAddr: cfg.ListenAddr,
		listener:   listener,
		clients:    make(map[net.Conn]chan []byte),
	}, nil
}

// StartEventSink creates a goroutine loop to receive engine events and
// relay them to connected clients
func (s *Sink) StartEventSink(ctx context.Context, wg *sync.WaitGroup) chan<- types.EngineEvent {
	log.Infof("starting event relay on %v...", s.listenAddr)
	eventChan := make(chan types.EngineEvent, 10)

	wg.Add(2)
	go s.acceptClients(ctx, wg)
	go s.processEvents(ctx, wg, eventChan)

	return eventChan
}

func (s *Sink) acceptClients(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info("cancellation request received. Closing relay listener.")
				return
			default:
				log.Error("relay accept failed:", err)
				continue
			}
		}

		log.Infof("relay client connected: %v", conn.RemoteAddr())
		frames := make(chan []byte, clientBuffer)
		s.clientsMu.Lock()
		s.clients[conn] = frames
		s.clientsMu.Unlock()

		go s.serveClient(ctx, conn, frames)
	}
}

// serveClient writes queued frames to one client until it disconnects or
// the sink shuts down.
func (s *Sink) serveClient(ctx context.Context, conn net.Conn, frames <-chan []byte) {
	defer s.dropClient(conn)

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write(frame); err != nil {
				log.Infof("relay client %v disconnected: %v", conn.RemoteAddr(), err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sink) dropClient(conn net.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

func (s *Sink) processEvents(ctx context.Context, wg *sync.WaitGroup, events <-chan types.EngineEvent) {
	defer wg.Done()

	for {
		select {
		case ev := <-events:
			frame, err := encodeFrame(ev)
			if err != nil {
				log.Error("could not encode relay frame:", err)
				continue
			}
			s.broadcast(frame)
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling relay processor.")
			return
		}
	}
}

// broadcast queues a frame for every client, dropping clients whose
// buffers are full so one stalled head unit cannot back up the engine.
func (s *Sink) broadcast(frame []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for conn, frames := range s.clients {
		select {
		case frames <- frame:
		default:
			log.Warnf("relay client %v too slow, dropping", conn.RemoteAddr())
			delete(s.clients, conn)
			conn.Close()
			close(frames)
		}
	}
}

// encodeFrame produces a 4-byte big-endian length prefix followed by the
// MessagePack-encoded event envelope.
func encodeFrame(ev types.EngineEvent) ([]byte, error) {
	var body bytes.Buffer
	encoder := msgpack.NewEncoder(&body)
	encoder.SetCustomStructTag("json")
	if err := encoder.Encode(envelope{Event: ev.EventName(), Data: ev}); err != nil {
		return nil, err
	}

	frame := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(frame, uint32(body.Len()))
	copy(frame[4:], body.Bytes())
	return frame, nil
}
