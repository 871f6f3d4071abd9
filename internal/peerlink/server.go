package peerlink

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

const (
	// DefaultCommandBuffer is the default size of the inbound command channel.
	DefaultCommandBuffer = 16

	// maxInboundFrame bounds a single peer frame; commands and acks are tiny.
	maxInboundFrame = 4096

	ackBuffer = 8
)

// Config holds tunable parameters for the link.
type Config struct {
	AckTimeout    time.Duration
	WriteTimeout  time.Duration
	CommandBuffer int
}

// Link is the bridge side of the peer channel. It serves a websocket for a
// single peer, turns inbound frames into commands and implements
// model.Sender with ack-gated sends.
type Link struct {
	ackTimeout   time.Duration
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	commands chan model.Command
	nextSeq  atomic.Uint64

	// sendMu keeps at most one unacknowledged frame in flight.
	sendMu sync.Mutex

	mu     sync.Mutex
	peer   *peerConn
	closed bool

	quit chan struct{}
	wg   sync.WaitGroup
}

type ack struct {
	seq uint64
	ok  bool
}

type peerConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	acks    chan ack
	done    chan struct{}
	once    sync.Once
}

// NewLink creates a link. It does not listen on its own; mount it on an HTTP
// router (it implements http.Handler).
func NewLink(cfg Config) *Link {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = model.DefaultAckTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	return &Link{
		ackTimeout:   cfg.AckTimeout,
		writeTimeout: cfg.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The peer is a device companion, not a browser page.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		commands: make(chan model.Command, cfg.CommandBuffer),
		quit:     make(chan struct{}),
	}
}

// Commands returns the channel of inbound session commands.
func (l *Link) Commands() <-chan model.Command {
	return l.commands
}

// Connected reports whether a peer is attached.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer != nil
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
// A new connection replaces the current peer.
func (l *Link) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("peerlink: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(maxInboundFrame)

	p := &peerConn{
		id:   uuid.NewString(),
		conn: conn,
		acks: make(chan ack, ackBuffer),
		done: make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return
	}
	previous := l.peer
	l.peer = p
	l.wg.Add(1)
	l.mu.Unlock()
	defer l.wg.Done()

	if previous != nil {
		log.Printf("peerlink: peer %s replaced by %s", previous.id, p.id)
		previous.close()
	}
	log.Printf("peerlink: peer %s connected from %s", p.id, r.RemoteAddr)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.Send(context.Background(), model.NewReadyMessage()); err != nil {
			log.Printf("peerlink: ready to %s failed: %v", p.id, err)
		}
	}()

	l.readLoop(p)

	l.mu.Lock()
	if l.peer == p {
		l.peer = nil
	}
	l.mu.Unlock()
	p.close()
	log.Printf("peerlink: peer %s disconnected", p.id)
}

func (l *Link) readLoop(p *peerConn) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("peerlink: read from %s: %v", p.id, err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("peerlink: %v", &ProtocolError{Frame: string(data), Err: err})
			continue
		}

		switch frame.Kind {
		case model.KindAck, model.KindNack:
			// Only a running Send drains acks; never let stray ones stall
			// the command stream.
			select {
			case p.acks <- ack{seq: frame.Seq, ok: frame.Kind == model.KindAck}:
			default:
				log.Printf("peerlink: dropping stray %s %d from %s", frame.Kind, frame.Seq, p.id)
			}
			continue
		}

		cmd, err := commandFromFrame(frame)
		if err != nil {
			log.Printf("peerlink: %v", &ProtocolError{Frame: string(data), Err: err})
			continue
		}
		select {
		case l.commands <- cmd:
		case <-l.quit:
			return
		case <-p.done:
			return
		}
	}
}

// Send writes msg to the current peer and blocks until the peer acks it,
// rejects it, disconnects, ctx is done or the ack timeout elapses.
func (l *Link) Send(ctx context.Context, msg model.Message) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	l.mu.Lock()
	p, closed := l.peer, l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if p == nil {
		return ErrNoPeer
	}

	seq := l.nextSeq.Add(1)
	data, err := encodeFrame(seq, msg)
	if err != nil {
		return err
	}

	// Acks that arrived after an earlier timeout are stale.
	for drained := false; !drained; {
		select {
		case <-p.acks:
		default:
			drained = true
		}
	}

	if err := p.write(data, l.writeTimeout); err != nil {
		p.close()
		return err
	}

	timer := time.NewTimer(l.ackTimeout)
	defer timer.Stop()
	for {
		select {
		case a := <-p.acks:
			if a.seq != seq {
				continue
			}
			if !a.ok {
				return ErrNack
			}
			return nil
		case <-p.done:
			return ErrPeerGone
		case <-l.quit:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrAckTimeout
		}
	}
}

// Stop disconnects the peer and waits for its handler to return.
func (l *Link) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	p := l.peer
	l.mu.Unlock()

	close(l.quit)
	if p != nil {
		p.close()
	}
	l.wg.Wait()
}

func (p *peerConn) write(data []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peerConn) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		p.conn.Close()
	})
}
