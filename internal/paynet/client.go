// Package paynet talks to the instant-payment network: it consumes charge
// confirmation and expiry notifications and issues reversal requests when a
// pending charge is deleted on a terminal.
package paynet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/circuit"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/messaging"
)

var ErrReversalRejected = errors.New("payment network rejected the reversal")

// Client is the payment-network integration.
type Client struct {
	msg     *messaging.Client
	breaker *circuit.Breaker
	log     *slog.Logger
	timeout time.Duration
}

// Config tunes the client.
type Config struct {
	RequestTimeout time.Duration
	MaxFailures    int
	Cooldown       time.Duration
}

// NewClient builds a client over the shared NATS connection.
func NewClient(msg *messaging.Client, log *slog.Logger, cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	breaker := circuit.NewBreaker(circuit.Config{
		Name:        "paynet",
		MaxFailures: cfg.MaxFailures,
		Cooldown:    cfg.Cooldown,
		OnStateChange: func(name string, from, to circuit.State) {
			log.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{msg: msg, breaker: breaker, log: log, timeout: cfg.RequestTimeout}
}

// Reverse asks the network to drop the open charge behind a pending instant
// transfer. Callers must not delete the local record unless this succeeds.
func (c *Client) Reverse(ctx context.Context, req messaging.ReversalRequest) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.msg.Request(ctx, messaging.SubjectChargeReverse, req)
		if err != nil {
			return fmt.Errorf("reversal request failed: %w", err)
		}

		var reply messaging.ReversalReply
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			return fmt.Errorf("malformed reversal reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("%w: %s", ErrReversalRejected, reply.Detail)
		}

		c.log.Info("charge reversed", "payment_id", req.PaymentID, "reason", req.Reason)
		return nil
	})
}

// Notifications routes confirmation and expiry events from the network to
// the given handlers. Returns an unsubscribe func covering both feeds.
func (c *Client) Notifications(onConfirmed, onExpired func(messaging.ChargeNotification)) (func(), error) {
	decode := func(handler func(messaging.ChargeNotification)) func(*nats.Msg) {
		return func(msg *nats.Msg) {
			var n messaging.ChargeNotification
			if err := json.Unmarshal(msg.Data, &n); err != nil {
				c.log.Error("dropping malformed charge notification", "subject", msg.Subject, "error", err)
				return
			}
			handler(n)
		}
	}

	unsubConfirmed, err := c.msg.QueueSubscribe(messaging.SubjectChargeConfirmed, "settlementd", decode(onConfirmed))
	if err != nil {
		return nil, err
	}
	unsubExpired, err := c.msg.QueueSubscribe(messaging.SubjectChargeExpired, "settlementd", decode(onExpired))
	if err != nil {
		unsubConfirmed()
		return nil, err
	}

	return func() {
		unsubConfirmed()
		unsubExpired()
	}, nil
}
