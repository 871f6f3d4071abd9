package peerlink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

// Client is the peer side of the link. The peer emulator and the end-to-end
// tests use it to issue commands and acknowledge deliveries.
type Client struct {
	conn       *websocket.Conn
	mu         sync.Mutex
	deliveries chan Delivery
	closing    chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	err        error
}

// Dial connects to the bridge's peer endpoint, e.g. ws://127.0.0.1:3000/peer.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("peerlink: dial: %w", err)
	}
	c := &Client{
		conn:       conn,
		deliveries: make(chan Delivery, 64),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Deliveries returns decoded bridge frames in arrival order. The channel is
// closed when the connection ends; Err then reports why.
func (c *Client) Deliveries() <-chan Delivery {
	return c.deliveries
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Command asks the bridge to start (or cancel) session id.
func (c *Client) Command(kind model.MessageKind, id int) error {
	return c.write(InboundFrame{Kind: kind, ID: &id})
}

// Ack acknowledges delivery seq.
func (c *Client) Ack(seq uint64) error {
	return c.write(InboundFrame{Kind: model.KindAck, Seq: seq})
}

// Nack tells the bridge delivery seq could not be stored.
func (c *Client) Nack(seq uint64) error {
	return c.write(InboundFrame{Kind: model.KindNack, Seq: seq})
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) write(frame InboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("peerlink: marshal frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("peerlink: send: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.deliveries)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
		d, err := decodeDelivery(data)
		if err != nil {
			log.Printf("peerlink: client: %v", err)
			continue
		}
		select {
		case c.deliveries <- d:
		case <-c.closing:
			return
		}
	}
}
