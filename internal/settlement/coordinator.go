package settlement

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/billing"
)

// ChangeFeed is the subscription half of the messaging client.
type ChangeFeed interface {
	Subscribe(subject string, handler func(msg *nats.Msg)) (func() error, error)
}

// Loader projects the current ledger for a bill. *Service satisfies it.
type Loader interface {
	Summary(ctx context.Context, ref BillRef, terms billing.Terms) (billing.Summary, []billing.Payment, error)
}

// Coordinator keeps one terminal's view of one bill converged with the
// store. On any change-feed event it reloads the full payment list and
// recomputes the summary from scratch. It never applies the event payload
// itself: partial or out-of-order notifications must not be able to diverge
// the view, so the store is always the source of truth.
type Coordinator struct {
	ref    BillRef
	terms  billing.Terms
	loader Loader
	log    *slog.Logger

	mu       sync.RWMutex
	summary  billing.Summary
	payments []billing.Payment

	trigger chan struct{}
	updates chan billing.Summary
	done    chan struct{}
	unsub   func() error
	once    sync.Once
}

// Watch performs the initial load, subscribes to the bill's change feed and
// starts the reload loop.
func Watch(ctx context.Context, loader Loader, feed ChangeFeed, ref BillRef, terms billing.Terms, subject string, log *slog.Logger) (*Coordinator, error) {
	c := &Coordinator{
		ref:     ref,
		terms:   terms,
		loader:  loader,
		log:     log,
		trigger: make(chan struct{}, 1),
		updates: make(chan billing.Summary, 1),
		done:    make(chan struct{}),
	}

	if err := c.reload(ctx); err != nil {
		return nil, err
	}

	unsub, err := feed.Subscribe(subject, func(*nats.Msg) {
		// Coalesce bursts: one pending trigger is enough, the reload
		// always reads the latest state anyway.
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	c.unsub = unsub

	go c.loop(ctx)
	return c, nil
}

func (c *Coordinator) loop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-c.trigger:
			if err := c.reload(ctx); err != nil {
				// Keep the previous view; the next event retries.
				c.log.Warn("ledger reload failed", "bill_id", c.ref.BillID, "error", err)
			}
		}
	}
}

func (c *Coordinator) reload(ctx context.Context) error {
	summary, payments, err := c.loader.Summary(ctx, c.ref, c.terms)
	if err != nil {
		return err
	}
	coordinatorReloads.Inc()

	c.mu.Lock()
	c.summary = summary
	c.payments = payments
	c.mu.Unlock()

	// Latest-wins: a slow consumer only ever misses intermediate states.
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- summary:
	default:
	}
	return nil
}

// Current returns the last computed summary and payment list.
func (c *Coordinator) Current() (billing.Summary, []billing.Payment) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary, c.payments
}

// Updates delivers new summaries as they are recomputed. Only the most
// recent unconsumed summary is retained.
func (c *Coordinator) Updates() <-chan billing.Summary {
	return c.updates
}

// Close stops the reload loop and unsubscribes from the feed. Closing the
// settlement view discards nothing already written to the store.
func (c *Coordinator) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.unsub != nil {
			err = c.unsub()
		}
	})
	return err
}
