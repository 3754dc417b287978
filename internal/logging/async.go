package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

const defaultQueueCapacity = 4096

// BoundedWriter is a zerolog.LevelWriter that hands every write off to a
// background goroutine through a fixed-capacity channel. When the queue is
// full, the incoming record is dropped rather than blocking the caller —
// spec §5's "bounded capacity (drop-newest on overflow to avoid blocking)".
type BoundedWriter struct {
	out     *os.File
	queue   chan []byte
	dropped uint64
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

// NewBoundedWriter starts the background drain goroutine and returns a
// writer ready for use as a zerolog.New(...) sink. capacity <= 0 falls back
// to defaultQueueCapacity.
func NewBoundedWriter(out *os.File, capacity int) *BoundedWriter {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	w := &BoundedWriter{
		out:   out,
		queue: make(chan []byte, capacity),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *BoundedWriter) drain() {
	defer close(w.done)
	for record := range w.queue {
		_, _ = w.out.Write(record)
	}
}

// Write implements io.Writer. It never blocks: a full queue increments
// Dropped and discards p rather than waiting for drain capacity.
func (w *BoundedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return len(p), nil
	}
	w.mu.Unlock()

	record := make([]byte, len(p))
	copy(record, p)

	select {
	case w.queue <- record:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
	}
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter so a BoundedWriter can be
// handed straight to zerolog.New without losing the level tag on the
// queued record; the level itself doesn't change the drop-newest policy.
func (w *BoundedWriter) WriteLevel(_ zerolog.Level, p []byte) (int, error) {
	return w.Write(p)
}

// Dropped reports how many records have been discarded for a full queue.
func (w *BoundedWriter) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close stops accepting new writes and blocks until the queue drains.
func (w *BoundedWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.queue)
	<-w.done
	return nil
}
