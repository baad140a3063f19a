package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultPoll is the interval Follow checks the file for new lines.
const DefaultPoll = 250 * time.Millisecond

// Filter reports whether a log line should be shown. A nil Filter keeps
// every line.
type Filter func(line string) bool

// MatchField keeps JSON log lines whose top-level key equals value. Lines
// that are not JSON objects never match.
func MatchField(key, value string) Filter {
	return func(line string) bool {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return false
		}
		got, ok := record[key].(string)
		return ok && got == value
	}
}

func (f Filter) keep(line string) bool {
	return f == nil || f(line)
}

// Last returns up to limit trailing lines of path that pass filter, plus the
// offset of the end of the file. A missing file yields no lines and offset 0.
func Last(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanFrom(file, 0, func(line string) {
		if !filter.keep(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// Follow emits lines appended to path after offset until ctx is done. When
// the file shrinks below offset it is treated as rotated and read from the
// start. Follow returns nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(string)) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readNew(path, offset, filter, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readNew(path string, offset int64, filter Filter, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	return scanFrom(file, offset, func(line string) {
		if filter.keep(line) {
			emit(line)
		}
	})
}

// scanFrom feeds complete lines after offset to fn and returns the offset
// just past the last newline consumed. A trailing partial line is left for
// the next read.
func scanFrom(file *os.File, offset int64, fn func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadSlice('\n')
		if err == nil {
			offset += int64(len(line))
			fn(string(line[:len(line)-1]))
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			// Overlong line: skip it entirely rather than splitting it.
			skipped, skipErr := skipLine(reader, int64(len(line)))
			if skipErr != nil {
				return offset, nil
			}
			offset += skipped
			continue
		}
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		return offset, fmt.Errorf("read log file: %w", err)
	}
}

func skipLine(reader *bufio.Reader, consumed int64) (int64, error) {
	for {
		chunk, err := reader.ReadSlice('\n')
		consumed += int64(len(chunk))
		if err == nil {
			return consumed, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return consumed, err
		}
	}
}
