package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is a minimal ftyp box that content sniffing reports as video/mp4.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00,
	'm', 'p', '4', '2', 'i', 's', 'o', 'm',
}

// FakeMP4 returns bytes that sniff as video/mp4 followed by payload, so tests
// can tell fixtures apart after they pass through the pipeline.
func FakeMP4(payload string) []byte {
	out := make([]byte, 0, len(mp4Header)+len(payload))
	out = append(out, mp4Header...)
	return append(out, payload...)
}

// IsFakeMP4 reports whether data starts with the fake MP4 header.
func IsFakeMP4(data []byte) bool {
	return bytes.HasPrefix(data, mp4Header)
}

// WriteFakeMP4 writes FakeMP4(payload) to path.
func WriteFakeMP4(t testing.TB, path, payload string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, FakeMP4(payload), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
