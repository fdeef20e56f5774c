package proc

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLaunchCommand(t *testing.T) {
	cases := []struct {
		script   string
		extra    []string
		wantName string
		wantArgs []string
	}{
		{"worker.py", nil, "python3", []string{"worker.py"}},
		{"worker.py", []string{"--trace"}, "python3", []string{"worker.py", "--trace"}},
		{"worker.js", nil, "node", []string{"worker.js"}},
		{"worker.mjs", nil, "node", []string{"worker.mjs"}},
		{"worker.sh", nil, "sh", []string{"worker.sh"}},
		{"/usr/local/bin/worker", nil, "/usr/local/bin/worker", nil},
		{"/usr/local/bin/worker", []string{"-v"}, "/usr/local/bin/worker", []string{"-v"}},
	}

	for _, tc := range cases {
		name, args := LaunchCommand(tc.script, tc.extra)
		if name != tc.wantName {
			t.Errorf("LaunchCommand(%q): expected command %q, got %q", tc.script, tc.wantName, name)
		}
		if len(args) != len(tc.wantArgs) {
			t.Errorf("LaunchCommand(%q): expected args %v, got %v", tc.script, tc.wantArgs, args)
			continue
		}
		for i := range args {
			if args[i] != tc.wantArgs[i] {
				t.Errorf("LaunchCommand(%q): expected args %v, got %v", tc.script, tc.wantArgs, args)
				break
			}
		}
	}
}

func TestSpawnEchoWorker(t *testing.T) {
	// cat echoes stdin to stdout line for line, which is exactly the
	// shape of a framed worker.
	ctx := context.Background()
	w, err := Spawn("cat", nil, os.Stderr)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer func() {
		termCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := w.Terminate(termCtx); err != nil {
			t.Errorf("Terminate failed: %v", err)
		}
	}()

	if !w.Alive() {
		t.Fatal("Expected worker to be alive after spawn")
	}
	if w.Pid() <= 0 {
		t.Errorf("Expected a positive pid, got %d", w.Pid())
	}

	if _, err := w.Stdin().Write([]byte("hello worker\n")); err != nil {
		t.Fatalf("Stdin write failed: %v", err)
	}

	reader := bufio.NewReader(w.Stdout())
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Stdout read failed: %v", err)
	}
	if strings.TrimSpace(line) != "hello worker" {
		t.Errorf("Expected 'hello worker', got %q", line)
	}
}

func TestTerminateByClosingStdin(t *testing.T) {
	ctx := context.Background()
	w, err := Spawn("cat", nil, os.Stderr)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	termCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Terminate(termCtx); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	select {
	case <-w.Done():
	default:
		t.Fatal("Expected Done to be closed after Terminate")
	}
	if w.Alive() {
		t.Error("Expected worker to be dead after Terminate")
	}
	if err := w.Err(); err != nil {
		t.Errorf("Expected clean exit, got %v", err)
	}

	// Terminate is idempotent.
	if err := w.Terminate(termCtx); err != nil {
		t.Errorf("Second Terminate failed: %v", err)
	}
}

func TestTerminateKillsStuckWorker(t *testing.T) {
	dir := t.TempDir()
	// A worker that ignores end-of-input and never exits on its own.
	script := filepath.Join(dir, "stuck.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nwhile true; do sleep 1; done\n"), 0755); err != nil {
		t.Fatalf("Could not write script: %v", err)
	}

	ctx := context.Background()
	w, err := Spawn(script, nil, os.Stderr)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	termCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := w.Terminate(termCtx); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if w.Alive() {
		t.Error("Expected worker to be dead after forced kill")
	}
	// A killed process reports a non-clean exit.
	if err := w.Err(); err == nil {
		t.Error("Expected a non-nil exit error after kill")
	}
}

func TestSpawnFailure(t *testing.T) {
	_, err := Spawn("/nonexistent/worker-binary", nil, os.Stderr)
	if err == nil {
		t.Fatal("Expected an error spawning a nonexistent binary")
	}
}

func TestSpawnedWorkerOutlivesCallerContext(t *testing.T) {
	// The worker's lifetime belongs to Terminate, not to whatever
	// context happened to be live while it was spawned.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	w, err := Spawn("cat", nil, os.Stderr)
	if err != nil {
		cancel()
		t.Fatalf("Spawn failed: %v", err)
	}
	cancel()
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)

	if !w.Alive() {
		t.Fatal("Expected worker to survive the caller's context expiring")
	}
	if _, err := w.Stdin().Write([]byte("still here\n")); err != nil {
		t.Fatalf("Stdin write failed after context expiry: %v", err)
	}
	line, err := bufio.NewReader(w.Stdout()).ReadString('\n')
	if err != nil {
		t.Fatalf("Stdout read failed after context expiry: %v", err)
	}
	if strings.TrimSpace(line) != "still here" {
		t.Errorf("Expected 'still here', got %q", line)
	}

	termCtx, termCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer termCancel()
	if err := w.Terminate(termCtx); err != nil {
		t.Errorf("Terminate failed: %v", err)
	}
}

func TestFinalFrameReadableAfterExit(t *testing.T) {
	dir := t.TempDir()
	// A worker that writes one last line and exits immediately. The
	// line must still reach the reader even though the process has
	// already been reaped by the time the read happens.
	script := filepath.Join(dir, "lastword.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho parting frame\n"), 0755); err != nil {
		t.Fatalf("Could not write script: %v", err)
	}

	w, err := Spawn(script, nil, os.Stderr)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	<-w.Done()

	reader := bufio.NewReader(w.Stdout())
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Expected the final frame after exit, got error: %v", err)
	}
	if strings.TrimSpace(line) != "parting frame" {
		t.Errorf("Expected 'parting frame', got %q", line)
	}
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("Expected end-of-stream after the final frame")
	}
}

func TestWorkerStderrGoesToSink(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "noisy.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho diagnostic >&2\necho frame\n"), 0755); err != nil {
		t.Fatalf("Could not write script: %v", err)
	}

	var stderr bytes.Buffer
	w, err := Spawn(script, nil, &stderr)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	reader := bufio.NewReader(w.Stdout())
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Stdout read failed: %v", err)
	}
	if strings.TrimSpace(line) != "frame" {
		t.Errorf("Expected only protocol data on stdout, got %q", line)
	}

	<-w.Done()
	if !strings.Contains(stderr.String(), "diagnostic") {
		t.Errorf("Expected stderr sink to capture diagnostics, got %q", stderr.String())
	}
}
