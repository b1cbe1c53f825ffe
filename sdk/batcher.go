package sdk

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/equalcollective/xray/domain"
)

// batcher decouples the instrumented pipeline from the transport. Producers
// hand events over a buffered channel; one worker goroutine owns the batch
// slice exclusively and flushes it when it reaches batchSize or when
// flushInterval has elapsed since the batch became non-empty, whichever
// comes first. Delivery is at-most-once: a failed flush drops the detached
// batch and the worker moves on.
type batcher struct {
	events        chan domain.IngestEvent
	done          chan struct{}
	stopped       chan struct{}
	closeOnce     sync.Once
	sender        Sender
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	dropped       atomic.Uint64
}

func newBatcher(sender Sender, batchSize int, flushInterval time.Duration, queueSize int, sendTimeout time.Duration) *batcher {
	return &batcher{
		events:        make(chan domain.IngestEvent, queueSize),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		sender:        sender,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		sendTimeout:   sendTimeout,
	}
}

// enqueue appends an event to the buffer. Never blocks and never fails: when
// the buffer is full the event is dropped and counted.
func (b *batcher) enqueue(ev domain.IngestEvent) {
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

func (b *batcher) run() {
	var batch []domain.IngestEvent
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	flush := func() {
		stopTimer()
		if len(batch) == 0 {
			return
		}
		detached := batch
		batch = nil
		b.send(detached)
	}

	for {
		select {
		case ev := <-b.events:
			batch = append(batch, ev)
			if len(batch) >= b.batchSize {
				flush()
			} else if timerC == nil {
				timer = time.NewTimer(b.flushInterval)
				timerC = timer.C
			}

		case <-timerC:
			timer = nil
			timerC = nil
			flush()

		case <-b.done:
			// Drain whatever is already queued, then one final flush.
			for {
				select {
				case ev := <-b.events:
					batch = append(batch, ev)
				default:
					flush()
					close(b.stopped)
					return
				}
			}
		}
	}
}

// send delivers one detached batch. Transport failures are swallowed here;
// the instrumented pipeline must never observe them.
func (b *batcher) send(batch []domain.IngestEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), b.sendTimeout)
	defer cancel()

	if err := b.sender.Send(ctx, batch); err != nil {
		b.dropped.Add(uint64(len(batch)))
		log.Printf("WARN: xray: dropping batch of %d events: %v", len(batch), err)
	}
}

func (b *batcher) close(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.done) })
	select {
	case <-b.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *batcher) droppedCount() uint64 {
	return b.dropped.Load()
}
