package bridge

import (
	"context"
	"log/slog"

	"github.com/roach88/voltbridge/internal/journal"
)

// journalWriter appends journal entries on its own goroutine, in the order
// the delivery loop produced them, so dispatch never waits on the database.
type journalWriter struct {
	rec    Recorder
	queue  *taskQueue
	logger *slog.Logger
	done   chan struct{}
}

func newJournalWriter(rec Recorder, logger *slog.Logger) *journalWriter {
	return &journalWriter{
		rec:    rec,
		queue:  newTaskQueue(),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// run writes queued entries until close is called and the queue is empty.
func (w *journalWriter) run(ctx context.Context) {
	defer close(w.done)
	for {
		if t, ok := w.queue.TryDequeue(); ok {
			t(ctx)
			continue
		}
		if _, open := <-w.queue.Wait(); !open && w.queue.Len() == 0 {
			return
		}
	}
}

func (w *journalWriter) append(e journal.Entry) {
	ok := w.queue.Enqueue(func(ctx context.Context) {
		if err := w.rec.Append(ctx, e); err != nil {
			w.logger.Warn("journal append failed",
				"session", e.SessionID,
				"seq", e.Seq,
				"kind", e.Kind,
				"name", e.Name,
				"error", err,
			)
		}
	})
	if !ok {
		w.logger.Warn("journal writer closed, dropping entry", "session", e.SessionID, "seq", e.Seq)
	}
}

// barrier waits until every entry queued before it has been written.
func (w *journalWriter) barrier(ctx context.Context) error {
	reached := make(chan struct{})
	if !w.queue.Enqueue(func(context.Context) { close(reached) }) {
		reached = w.done
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting entries and waits for the queued ones.
func (w *journalWriter) close() {
	w.queue.Close()
	<-w.done
}
