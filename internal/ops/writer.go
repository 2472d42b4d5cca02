package ops

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/onionskin/onion/internal/errors"
)

// writeQueueSize bounds how many detached writes may be pending before
// Submit blocks.
const writeQueueSize = 256

type writeJob struct {
	name   string
	fn     func(ctx context.Context) error
	result chan error
}

// Writer applies store writes on a single background goroutine in submission
// order. Detached writes (Submit) log their failures; awaited writes (Do)
// return them. Because both share one queue, an awaited write never overtakes
// a detached one submitted before it.
type Writer struct {
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan writeJob
	done   chan struct{}
}

// NewWriter starts a writer. A nil logger discards failure logs.
func NewWriter(logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &Writer{
		logger: logger,
		jobs:   make(chan writeJob, writeQueueSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for j := range w.jobs {
		err := j.fn(context.Background())
		if j.result != nil {
			j.result <- err
			continue
		}
		if err != nil {
			w.logger.Printf("write %s failed: %v", j.name, err)
		}
	}
}

func (w *Writer) enqueue(j writeJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.jobs <- j
	return true
}

// Submit queues a detached write and returns immediately.
func (w *Writer) Submit(name string, fn func(ctx context.Context) error) {
	if !w.enqueue(writeJob{name: name, fn: fn}) {
		w.logger.Printf("write %s dropped: writer closed", name)
	}
}

// Do queues a write and waits for it. If ctx ends first the write still runs
// and CANCELLED is returned.
func (w *Writer) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	if !w.enqueue(writeJob{name: name, fn: fn, result: result}) {
		return errors.NewInternal(fmt.Errorf("write %s: writer closed", name))
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errors.NewCancelled("write " + name)
	}
}

// Flush waits until every write submitted before the call has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		<-w.done
		return nil
	}
	return w.Do(ctx, "flush", func(context.Context) error { return nil })
}

// Close drains pending writes and stops the writer. Safe to call twice.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}
