// Package storage keeps uploaded contract files on local disk, addressed by
// the SHA-256 of their content.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

// Stored describes a saved file.
type Stored struct {
	Path    string
	Size    int64
	HashHex string
	Existed bool // an identical file was already on disk
}

// Local stores files under Dir as <sha256>.<ext>.
type Local struct {
	Dir     string
	MaxSize int64
	logger  *slog.Logger
}

func NewLocal(dir string, maxSize int64, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = constants.MaxUploadBytes
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: abs, MaxSize: maxSize, logger: logger}, nil
}

// Save streams r to disk while hashing it. Files larger than MaxSize are
// rejected with ErrFileTooLarge and nothing is kept.
func (l *Local) Save(ctx context.Context, r io.Reader, ext string) (Stored, error) {
	ext = constants.NormalizeExt(ext)
	if !constants.IsAllowedExt(ext) {
		return Stored{}, fmt.Errorf("%w: .%s (only PDF files are supported)", common.ErrUnsupportedFile, ext)
	}

	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return Stored{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(&ctxReader{ctx: ctx, r: r}, l.MaxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.logger.Error("storage.save.failed", "error", err)
		return Stored{}, fmt.Errorf("write upload: %w", err)
	}
	if n > l.MaxSize {
		return Stored{}, fmt.Errorf("%w: exceeds %d bytes", common.ErrFileTooLarge, l.MaxSize)
	}
	if n == 0 {
		return Stored{}, fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	dst := filepath.Join(l.Dir, sum+"."+ext)
	out := Stored{Path: dst, Size: n, HashHex: sum}
	if _, err := os.Stat(dst); err == nil {
		out.Existed = true
		l.logger.Debug("storage.save.dedup", "path", dst)
		return out, nil
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return Stored{}, fmt.Errorf("store upload: %w", err)
	}
	tmpName = ""
	l.logger.Info("storage.save.ok", "path", dst, "bytes", n)
	return out, nil
}

// Open opens a stored file for reading. Paths outside Dir are refused.
func (l *Local) Open(path string) (*os.File, error) {
	if err := l.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", common.ErrNotFound, filepath.Base(path))
	}
	return f, err
}

// Remove deletes a stored file; a missing file is not an error.
func (l *Local) Remove(path string) error {
	if err := l.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) contains(path string) error {
	rel, err := filepath.Rel(l.Dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: path outside upload dir", common.ErrInvalidInput)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
