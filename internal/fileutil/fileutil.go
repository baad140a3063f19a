// Package fileutil holds the file copy helpers shared by the staging area and
// the filesystem artifact store.
package fileutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Sum describes file content by size and BLAKE3-256 digest.
type Sum struct {
	Size   int64
	BLAKE3 string
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// HashFile returns the size and digest of the file at path.
func HashFile(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, err
	}
	defer f.Close()
	return hashReader(f)
}

func hashReader(r io.Reader) (Sum, error) {
	hasher := blake3.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return Sum{}, err
	}
	return Sum{Size: n, BLAKE3: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// WriteAtomic streams r into a temporary file beside dst and renames it into
// place once fully written. Readers never observe a partial dst.
func WriteAtomic(dst string, r io.Reader) (Sum, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Sum{}, fmt.Errorf("create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return Sum{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return Sum{}, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return Sum{}, err
	}
	if err := tmp.Close(); err != nil {
		return Sum{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Sum{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return Sum{Size: written, BLAKE3: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFileVerified copies src to dst atomically, then re-reads dst and checks
// size and BLAKE3 digest against the source. Removes dst on mismatch.
func CopyFileVerified(src, dst string) (Sum, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return Sum{}, fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return Sum{}, err
	}
	defer in.Close()

	want, err := WriteAtomic(dst, in)
	if err != nil {
		return Sum{}, err
	}
	if want.Size != srcInfo.Size() {
		_ = os.Remove(dst)
		return Sum{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), want.Size)
	}

	got, err := HashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return Sum{}, fmt.Errorf("verify copy: %w", err)
	}
	if got != want {
		_ = os.Remove(dst)
		return Sum{}, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return got, nil
}
