package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// ErrClosed is returned by Append on a backend that has been closed.
var ErrClosed = errors.New("event log closed")

type txFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  txFn
	ch  chan error
}

// writeWorker serializes write transactions through one goroutine. SQLite
// permits a single writer at a time; funnelling writes through a queue
// avoids SQLITE_BUSY churn under concurrent frame processing while keeping
// reads on their own connections.
type writeWorker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}

	// mu protects closed and fences sends against close(jobs): do sends
	// under the read lock, close flips the flag under the write lock, so
	// a late Append fails with ErrClosed instead of panicking.
	mu     sync.RWMutex
	closed bool
}

func newWriteWorker(db *sql.DB) *writeWorker {
	w := &writeWorker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// close stops the worker after draining queued jobs, so a shutdown never
// truncates an in-flight append. Safe to call more than once.
func (w *writeWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
}

func (w *writeWorker) do(ctx context.Context, fn txFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.jobs <- j:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	// The worker still completes a queued transaction if the caller's
	// context expires while waiting; the result lands in the buffered
	// channel and is discarded.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writeWorker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		tx, err := w.db.BeginTx(j.ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(j.ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
