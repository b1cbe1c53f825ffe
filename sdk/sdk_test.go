package sdk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/equalcollective/xray/domain"
)

// memorySender captures flushed batches for assertions.
type memorySender struct {
	mu      sync.Mutex
	batches [][]domain.IngestEvent
	err     error
}

func (m *memorySender) Send(ctx context.Context, events []domain.IngestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	batch := make([]domain.IngestEvent, len(events))
	copy(batch, events)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *memorySender) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *memorySender) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *memorySender) events() []domain.IngestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.IngestEvent
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestClient(sender *memorySender, opts ...Option) (*Client, func()) {
	opts = append([]Option{WithSender(sender), WithBatchSize(1000), WithFlushInterval(time.Hour)}, opts...)
	c := New("http://unused", opts...)
	return c, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Close(ctx)
	}
}

// drain closes the client, forcing a final flush, and returns all events.
func drain(c *Client, sender *memorySender) []domain.IngestEvent {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = c.Close(ctx)
	return sender.events()
}

var errTransport = errors.New("transport down")
