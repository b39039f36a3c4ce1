package telemetry

import (
	"bytes"
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// DefaultBatchSize is the number of buffered bytes that forces a flush.
	DefaultBatchSize = 4096
	// DefaultBatchInterval is the longest time output stays buffered.
	DefaultBatchInterval = 50 * time.Millisecond
)

// ErrBatcherClosed is returned by writes after Close.
var ErrBatcherClosed = zerr.New("log batcher is closed")

// Batcher coalesces toolchain output into chunks so renderers are not flooded
// with one event per write. Chunks are handed to onFlush in write order.
type Batcher struct {
	size     int
	interval time.Duration
	onFlush  func([]byte)

	mu     sync.Mutex
	buf    bytes.Buffer
	ticker *time.Ticker
	stop   chan struct{}
	closed bool
}

// NewBatcher starts a Batcher. Non-positive limits select the defaults.
// Close must be called to release the background flusher.
func NewBatcher(size int, interval time.Duration, onFlush func([]byte)) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultBatchInterval
	}

	b := &Batcher{
		size:     size,
		interval: interval,
		onFlush:  onFlush,
		ticker:   time.NewTicker(interval),
		stop:     make(chan struct{}),
	}
	go b.run()

	return b
}

// Write buffers p and flushes once the size limit is reached.
func (b *Batcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBatcherClosed
	}

	n, _ := b.buf.Write(p)
	if b.buf.Len() >= b.size {
		b.flushLocked()
		b.ticker.Reset(b.interval)
	}

	return n, nil
}

// Flush hands buffered output to the callback.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.flushLocked()
	}
}

// Close flushes the remaining output and stops the flusher.
func (b *Batcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stop)
	b.flushLocked()

	return nil
}

func (b *Batcher) run() {
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.stop:
			b.ticker.Stop()
			return
		}
	}
}

func (b *Batcher) flushLocked() {
	if b.buf.Len() == 0 {
		return
	}

	chunk := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()

	// Called under the lock to keep chunks ordered. onFlush must not block.
	if b.onFlush != nil {
		b.onFlush(chunk)
	}
}
