// Package tracer implements the append-only, asynchronous, per-job
// annotated operation log described in spec §4.8: a background goroutine
// drains a bounded channel and appends lines to a file, so that sync job
// goroutines never block on disk I/O to log what they did.
package tracer

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/bitslides/internal/log"
)

// channelSize bounds the trace mailbox; it is deliberately small since the
// writer goroutine drains it continuously and a burst just means a brief
// queue, never unbounded memory growth.
const channelSize = 32

// Tracer is a cloneable handle onto a single background writer. The zero
// value (no path configured) silently drops every message.
type Tracer struct {
	tx     chan string
	author string
}

// New starts the background writer for path, if one is given, and returns
// the unannotated root Tracer along with the writer's completion handle. The
// caller must wait on done after closing tx (via Close) to know the file has
// been flushed and closed.
func New(path string) (t Tracer, done <-chan struct{}, err error) {
	if path == "" {
		return Tracer{}, nil, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Tracer{}, nil, fmt.Errorf("tracer: open %s: %w", path, err)
	}

	ch := make(chan string, channelSize)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer f.Close()
		logger := log.WithComponent("tracer")
		for msg := range ch {
			if _, err := f.WriteString(msg + "\n"); err != nil {
				logger.Warn().Err(err).Msg("failed to write trace line")
			}
		}
	}()

	return Tracer{tx: ch}, finished, nil
}

// Annotate returns a new handle sharing the same writer but stamped with an
// author string. Only annotated tracers may emit; this keeps a job's log
// lines attributable to that job without threading its identity through
// every call site.
func (t Tracer) Annotate(author string) Tracer {
	return Tracer{tx: t.tx, author: author}
}

// Log composes and enqueues a trace line. It is an error to call Log on a
// Tracer that was never annotated, except for the distinguished "Init" line
// emitted once at startup by the root tracer.
func (t Tracer) Log(operation, details string) error {
	if t.author == "" && operation != "Init" {
		return fmt.Errorf("tracer: author not set, cannot emit %s", operation)
	}
	if t.tx == nil {
		return nil // tracing disabled
	}

	author := t.author
	if author == "" {
		author = "Init"
	}
	line := fmt.Sprintf("[%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05"), author, strip(operation, details))
	t.tx <- line
	return nil
}

func strip(operation, details string) string {
	if details == "" {
		return operation
	}
	return operation + " " + details
}

// Close closes the underlying channel, if any, signaling the writer
// goroutine to drain and exit. Only the owner of the root Tracer (the
// executor's shutdown coordinator) should call this.
func (t Tracer) Close() {
	if t.tx != nil {
		close(t.tx)
	}
}
