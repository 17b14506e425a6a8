// Package executor wires a filesystem watcher to the planned sync jobs and
// runs each job's sync loop until an orderly shutdown tears everything
// down. See spec §4.5-§4.7.
package executor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/bitslides/internal/log"
	"github.com/cuemby/bitslides/internal/metrics"
	"github.com/cuemby/bitslides/internal/mover"
	"github.com/cuemby/bitslides/internal/planner"
	"github.com/cuemby/bitslides/internal/syncer"
	"github.com/cuemby/bitslides/internal/topology"
	"github.com/cuemby/bitslides/internal/tracer"
)

// jobRun is the running state of one spawned sync-loop goroutine.
type jobRun struct {
	job  planner.SyncJob
	done chan error
}

// Token is the shutdown handle returned by Start: the watcher, every
// spawned job goroutine, and the tracer's writer goroutine, bundled so
// Stop can tear them down in the right order.
type Token struct {
	watcher        *fsnotify.Watcher
	dispatcherDone chan struct{}
	jobs           []*jobRun
	trace          tracer.Tracer
	traceDone      <-chan struct{}
}

// watchEntry pairs a registered slide path with the job wakeup channel it
// should signal on a filesystem event.
type watchEntry struct {
	path   string
	wakeup chan struct{}
}

// skipDirName reports whether a directory is hidden (dot-prefixed); such
// directories never get a recursive watch registered under them.
func skipDirName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Start builds the watcher, registers a recursive watch per job's source
// slide, and spawns one sync-loop goroutine per job.
func Start(volumes topology.Volumes, jobs []planner.SyncJob, dryRun bool, trace tracer.Tracer, strategy mover.Strategy) (*Token, error) {
	logger := log.WithComponent("executor")

	if err := trace.Log("Init", "Starting slides sync..."); err != nil {
		return nil, fmt.Errorf("executor: init trace: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("executor: create watcher: %w", err)
	}

	var entries []watchEntry
	registered := make(map[string]bool)

	for _, job := range jobs {
		srcPath := volumes[job.Src].Slides[job.Dst].Path
		entries = append(entries, watchEntry{path: srcPath, wakeup: job.Wakeup})

		if registered[srcPath] {
			continue
		}
		registered[srcPath] = true
		if err := watchRecursive(watcher, srcPath); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("executor: watch %s: %w", srcPath, err)
		}
	}

	dispatcherDone := make(chan struct{})
	go dispatch(watcher, entries, dispatcherDone, logger)

	token := &Token{watcher: watcher, dispatcherDone: dispatcherDone, trace: trace}

	for _, job := range jobs {
		srcPath := volumes[job.Src].Slides[job.Dst].Path
		viaPath := volumes[job.Via].Slides[job.Dst].Path
		jobTrace := trace.Annotate(job.String())

		run := &jobRun{job: job, done: make(chan error, 1)}
		token.jobs = append(token.jobs, run)

		go func(job planner.SyncJob, src, via string, jobTrace tracer.Tracer) {
			run.done <- runJobLoop(job, src, via, dryRun, jobTrace, strategy)
		}(job, srcPath, viaPath, jobTrace)
	}

	return token, nil
}

// runJobLoop implements the per-job sync loop of spec §4.6: sync once,
// then block for a wakeup (or the channel closing) before syncing again.
// Every pass gets its own correlation id, the way the teacher tags an
// inbound API request, so its log lines can be grepped out of a run with
// many jobs ticking concurrently.
func runJobLoop(job planner.SyncJob, src, via string, dryRun bool, trace tracer.Tracer, strategy mover.Strategy) error {
	labels := []string{job.Src, job.Via, job.Dst}
	jobLogger := log.WithJob(job.Src, job.Via, job.Dst)

	for {
		runID := uuid.New().String()
		logger := jobLogger.With().Str("run_id", runID).Logger()

		timer := metrics.NewTimer()
		stats, err := syncer.Sync(src, via, dryRun, trace, strategy)
		timer.ObserveDurationVec(metrics.SyncDuration, labels...)

		if err != nil {
			metrics.SyncRunsTotal.WithLabelValues(append(labels, "error")...).Inc()
			logger.Error().Err(err).Msg("sync failed")
			return err
		}
		logger.Debug().Int("files_moved", stats.FilesMoved).Int("dirs_reclaimed", stats.DirsReclaimed).Msg("sync pass complete")
		metrics.SyncRunsTotal.WithLabelValues(append(labels, "ok")...).Inc()
		metrics.FilesMovedTotal.WithLabelValues(labels...).Add(float64(stats.FilesMoved))
		metrics.DirsReclaimedTotal.WithLabelValues(labels...).Add(float64(stats.DirsReclaimed))

		if _, ok := <-job.Wakeup; !ok {
			return nil
		}
		metrics.WakeupsTotal.WithLabelValues(labels...).Inc()

		drain(job.Wakeup)
	}
}

// drain non-blockingly consumes any additional pending wakeups so a burst
// of filesystem events collapses into a single extra sync pass.
func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// dispatch reads fsnotify events off watcher until its Events channel is
// closed (by watcher.Close during shutdown), non-blockingly waking every
// registered slide whose path is an ancestor of the event path.
func dispatch(watcher *fsnotify.Watcher, entries []watchEntry, done chan struct{}, logger zerolog.Logger) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant(event.Op) {
				continue
			}
			name := filepath.Clean(event.Name)
			for _, e := range entries {
				if isAncestor(e.path, name) {
					select {
					case e.wakeup <- struct{}{}:
					default:
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

// isAncestor reports whether candidate is path itself or lies under it.
func isAncestor(path, candidate string) bool {
	path = filepath.Clean(path)
	candidate = filepath.Clean(candidate)
	if path == candidate {
		return true
	}
	return strings.HasPrefix(candidate, path+string(filepath.Separator))
}

// watchRecursive registers root and every non-dotfile subdirectory with
// watcher, since fsnotify has no native recursive mode.
func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(filepath.Clean(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() != filepath.Base(root) && skipDirName(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// Stop implements the shutdown coordinator of spec §4.7: drop the watcher
// first, then close every job's wakeup channel so its loop can observe "no
// more signals coming" and return, then await every job goroutine
// (collecting the first error without aborting the rest), then close the
// root tracer (every job that could still write to it has already exited)
// and await its writer goroutine.
func Stop(token *Token) error {
	token.watcher.Close()
	<-token.dispatcherDone

	for _, run := range token.jobs {
		close(run.job.Wakeup)
	}

	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, run := range token.jobs {
		wg.Add(1)
		go func(run *jobRun) {
			defer wg.Done()
			if err := <-run.done; err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(run)
	}
	wg.Wait()

	token.trace.Close()
	if token.traceDone != nil {
		<-token.traceDone
	}

	return firstErr
}

// WithTraceDone attaches the tracer's writer-goroutine completion channel
// to the token, so Stop can await it last.
func (t *Token) WithTraceDone(done <-chan struct{}) *Token {
	t.traceDone = done
	return t
}
