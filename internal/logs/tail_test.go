package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidmerge/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vidmerge.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if strings.Join(lines, ",") != "b,c" {
		t.Fatalf("unexpected lines %q", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if strings.Join(lines, ",") != "a,b,c" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestLastLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "a\nb\npart")

	lines, offset, err := logs.Last(path, 5, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if strings.Join(lines, ",") != "a,b" || offset != 4 {
		t.Fatalf("unexpected result %q offset %d", lines, offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 5, nil)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %q %d %v", lines, offset, err)
	}
}

func TestMatchFieldFiltersByRequestID(t *testing.T) {
	path := writeLog(t, strings.Join([]string{
		`{"msg":"http request","request_id":"r-1"}`,
		`plain text line`,
		`{"msg":"merge started","request_id":"r-2"}`,
		`{"msg":"merge published","request_id":"r-1"}`,
	}, "\n")+"\n")

	lines, _, err := logs.Last(path, 10, logs.MatchField("request_id", "r-1"))
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "merge published") {
		t.Fatalf("unexpected filtered lines %q", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 0, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, nil, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("next\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "next" {
		t.Fatalf("expected one appended line, got %q", got)
	}
}

func TestFollowRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\n")
	ctx, cancel := context.WithCancel(context.Background())

	var got []string
	emit := func(line string) {
		got = append(got, line)
		cancel()
	}
	if err := os.WriteFile(path, []byte("rotated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := logs.Follow(ctx, path, 14, time.Millisecond, nil, emit); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if len(got) != 1 || got[0] != "rotated" {
		t.Fatalf("expected rotated file to be read from the start, got %q", got)
	}
}
