package tracer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTracerDisabledDropsMessages(t *testing.T) {
	tr, done, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if done != nil {
		t.Error("done channel should be nil when tracing is disabled")
	}
	if err := tr.Annotate("_").Log("MV", "a -> b"); err != nil {
		t.Errorf("Log() on disabled tracer should not error, got %v", err)
	}
}

func TestTracerWritesAnnotatedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	root, done, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := root.Log("Init", "Starting slides sync..."); err != nil {
		t.Fatalf("Log(Init) error = %v", err)
	}

	job := root.Annotate("foo -bar-> bar")
	if err := job.Log("MV", "/a/f -> /b/f"); err != nil {
		t.Fatalf("Log(MV) error = %v", err)
	}
	if err := job.Log("MKDIR", "/b"); err != nil {
		t.Fatalf("Log(MKDIR) error = %v", err)
	}

	root.Close()
	waitClosed(t, done)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[Init] Init Starting slides sync...") {
		t.Errorf("line 0 = %q, missing Init marker", lines[0])
	}
	if !strings.Contains(lines[1], "[foo -bar-> bar] MV /a/f -> /b/f") {
		t.Errorf("line 1 = %q, missing job annotation", lines[1])
	}
}

func TestTracerUnannotatedRefusesNonInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	root, done, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		root.Close()
		waitClosed(t, done)
	}()

	if err := root.Log("MV", "x -> y"); err == nil {
		t.Error("expected error logging a non-Init op on an unannotated tracer")
	}
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracer writer goroutine did not finish")
	}
}
