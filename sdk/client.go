// Package sdk is the X-Ray instrumentation client. It tracks runs and nested
// steps through context.Context, summarizes large candidate sets into
// rejection histograms, and ships completed records to the backend in
// batches from a background goroutine. Instrumentation is fail-safe: nothing
// in this package blocks the host pipeline or surfaces transport errors to it.
package sdk

import (
	"context"
	"time"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 2 * time.Second
	defaultTimeout       = 5 * time.Second
	defaultQueueSize     = 1024
)

// Client is the X-Ray SDK client.
type Client struct {
	batcher *batcher
}

type options struct {
	batchSize     int
	flushInterval time.Duration
	timeout       time.Duration
	queueSize     int
	sender        Sender
}

// Option configures a Client.
type Option func(*options)

// WithBatchSize sets the number of events that triggers a flush.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a non-empty buffer may wait before flushing.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithTimeout sets the transport timeout for a single flush.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithQueueSize sets the enqueue buffer capacity. Events beyond it are dropped.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithSender overrides the transport used to deliver event batches.
func WithSender(s Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// New creates a client posting event batches to the X-Ray API at baseURL and
// starts its background flush worker.
func New(baseURL string, opts ...Option) *Client {
	o := options{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		timeout:       defaultTimeout,
		queueSize:     defaultQueueSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sender == nil {
		o.sender = newHTTPSender(baseURL, o.timeout)
	}

	c := &Client{
		batcher: newBatcher(o.sender, o.batchSize, o.flushInterval, o.queueSize, o.timeout),
	}
	go c.batcher.run()
	return c
}

// Close stops the background worker after one best-effort final flush of any
// buffered events. It never returns a transport error; the only error is the
// context expiring before the worker finishes.
func (c *Client) Close(ctx context.Context) error {
	return c.batcher.close(ctx)
}

// Dropped reports how many events were discarded because the enqueue buffer
// was full or a flush failed. Diagnostic only.
func (c *Client) Dropped() uint64 {
	return c.batcher.droppedCount()
}
