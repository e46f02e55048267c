// Package saver persists completed downloads. The progress stream only
// announces readiness; the bytes come from a second request to the
// file-retrieval endpoint, and the FileSaver capability keeps the disk
// mechanics out of the session logic.
package saver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSaver persists a named byte stream and returns where it landed.
type FileSaver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DiskSaver writes files into a directory, using a temp file and rename so
// an interrupted write never leaves a half-file under the final name.
type DiskSaver struct {
	dir     string
	tempDir string
}

// NewDiskSaver creates a disk saver. tempDir falls back to dir when empty.
func NewDiskSaver(dir, tempDir string) *DiskSaver {
	if dir == "" {
		dir = "."
	}
	if tempDir == "" {
		tempDir = dir
	}
	return &DiskSaver{dir: dir, tempDir: tempDir}
}

// Save writes r to <dir>/<sanitized name>.
func (s *DiskSaver) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = SanitizeFilename(name)
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.tempDir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = io.Copy(tmp, contextReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("move file to final location: %w", err)
	}

	return finalPath, nil
}

// contextReader aborts a copy when the context is cancelled between reads.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// SanitizeFilename makes a server-suggested filename safe to place in a
// directory: path separators and parent references are stripped.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	// Keep only the final path element regardless of separator style.
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "..", "")
	return strings.Trim(name, ". ")
}
