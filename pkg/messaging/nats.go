// Package messaging wraps the NATS connection every terminal and service
// shares: the bill-scoped change feed and the request-reply channel to the
// payment network.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection with JSON encoding and subscription
// bookkeeping.
type Client struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NewClient connects to NATS.
func NewClient(cfg Config) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish JSON-encodes v and publishes it to subject.
func (c *Client) Publish(ctx context.Context, subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for a subject (wildcards allowed). The
// returned unsubscribe func is safe to call more than once.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) (func() error, error) {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.track(sub)
	return unsubscribeOnce(sub), nil
}

// QueueSubscribe registers a handler within a queue group, so one instance
// of a horizontally scaled service handles each message.
func (c *Client) QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) (func() error, error) {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to queue subscribe to %s: %w", subject, err)
	}
	c.track(sub)
	return unsubscribeOnce(sub), nil
}

// Request JSON-encodes v, performs a request-reply and returns the raw
// response message. Honors ctx cancellation.
func (c *Client) Request(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", subject, err)
	}
	return msg, nil
}

func unsubscribeOnce(sub *nats.Subscription) func() error {
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = sub.Unsubscribe() })
		return err
	}
}

func (c *Client) track(sub *nats.Subscription) {
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}

// IsConnected reports connection health.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close unsubscribes everything and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
	c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
}

// Drain flushes pending messages before shutdown.
func (c *Client) Drain() error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.Drain()
}
