// Package storage keeps uploaded media on the local filesystem under a
// single root directory, one sub-directory per media type.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iliyamo/ajali/internal/model"
)

var (
	ErrTooLarge            = errors.New("file exceeds upload limit")
	ErrDisallowedExtension = errors.New("file extension not allowed")
	ErrMediaMismatch       = errors.New("file content does not match media type")
	ErrEmptyFile           = errors.New("file is empty")
)

var allowedExtensions = map[model.MediaType]map[string]bool{
	model.MediaImage: {"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true},
	model.MediaVideo: {"mp4": true, "mov": true, "avi": true, "webm": true, "mkv": true},
}

// Object describes a stored file.
type Object struct {
	Path     string // relative to the store root, slash separated
	Size     int64
	MIMEType string
}

// LocalStore writes files below Root. MaxBytes <= 0 disables the size check.
type LocalStore struct {
	Root     string
	MaxBytes int64
}

func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	for _, sub := range []string{"images", "videos"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &LocalStore{Root: root, MaxBytes: maxBytes}, nil
}

// AllowedExtension reports whether filename may be stored as mediaType.
func AllowedExtension(filename string, mediaType model.MediaType) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ext != "" && allowedExtensions[mediaType][ext]
}

// Save streams r to a new file named by a fresh UUID. The detected MIME
// type must belong to mediaType's family. Nothing is left on disk when an
// error is returned.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader, mediaType model.MediaType) (Object, error) {
	if !AllowedExtension(filename, mediaType) {
		return Object{}, ErrDisallowedExtension
	}
	ext := strings.ToLower(filepath.Ext(filename))
	rel := filepath.ToSlash(filepath.Join(string(mediaType)+"s", uuid.NewString()+ext))
	full := filepath.Join(s.Root, filepath.FromSlash(rel))

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(full)
		}
	}()

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, readerWithContext(ctx, src))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		return Object{}, ErrTooLarge
	}
	if n == 0 {
		return Object{}, ErrEmptyFile
	}

	mt, err := mimetype.DetectFile(full)
	if err != nil {
		return Object{}, fmt.Errorf("detect mime: %w", err)
	}
	if !strings.HasPrefix(mt.String(), string(mediaType)+"/") {
		return Object{}, ErrMediaMismatch
	}

	keep = true
	return Object{Path: rel, Size: n, MIMEType: mt.String()}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStore) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a stored relative path to a filesystem path, refusing
// anything that would land outside Root.
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid media path %q", path)
	}
	return filepath.Join(s.Root, clean), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

// SanitizeFilename keeps the base name of an uploaded file and replaces
// anything outside [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "upload"
	}
	if len(out) > 255 {
		out = out[len(out)-255:]
	}
	return out
}
