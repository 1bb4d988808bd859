package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
)

// Tracker accepts analytics events without blocking the caller.
type Tracker interface {
	Track(event any)
}

// Collector buffers events and publishes them to Kafka in batches, when a
// batch fills up or the flush interval elapses. Track never blocks: when
// the buffer is full the event is dropped and counted.
type Collector struct {
	publisher     kafka.Publisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	mu            sync.RWMutex
	closed        bool
	done          chan struct{}
	logger        *slog.Logger
}

func NewCollector(publisher kafka.Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publish loop. It returns immediately.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: eventKey(event), Value: event}:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events, publishes what is buffered and waits for
// the loop to exit. Start must have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

// Dropped is the number of events discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		} else {
			c.logger.Debug("analytics batch published", "events", len(batch))
		}
		batch = make([]kafka.Event, 0, c.batchSize)
	}

	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				flush(context.Background())
				return
			}
			batch = append(batch, ev)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			c.drain(&batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(flushCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, ev)
		default:
			return
		}
	}
}

// Multi fans events out to several trackers.
type Multi []Tracker

func (m Multi) Track(event any) {
	for _, t := range m {
		if t != nil {
			t.Track(event)
		}
	}
}
