package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"imagehost/internal/config"
)

// localStorage implements Storage on a single local directory.
// All access goes through an os.Root, so no name can resolve outside the directory,
// including through symlinks. It is safe for concurrent use by multiple goroutines.
type localStorage struct {
	root *os.Root
	dir  string
}

// NewLocal opens the storage directory, creating it if it does not exist yet.
func NewLocal(cfg config.StorageConfig) (Storage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	root, err := os.OpenRoot(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("open storage directory: %w", err)
	}
	return &localStorage{root: root, dir: cfg.Dir}, nil
}

// validName reports whether name is a single plain path component.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// Create writes r to a new file opened with O_EXCL. A failed copy removes the partial file.
func (l *localStorage) Create(ctx context.Context, name string, r io.Reader) (ObjectInfo, error) {
	if !validName(name) {
		return ObjectInfo{}, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	f, err := l.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, ErrExists
		}
		return ObjectInfo{}, fmt.Errorf("create %s: %w", name, err)
	}

	// Sniff while copying so the content is only read once.
	var head headBuffer
	n, err := io.Copy(f, io.TeeReader(r, &head))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.root.Remove(name)
		return ObjectInfo{}, fmt.Errorf("write %s: %w", name, err)
	}

	st, err := l.root.Stat(name)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return ObjectInfo{
		Name:         name,
		Size:         n,
		ContentType:  mimetype.Detect(head.Bytes()).String(),
		LastModified: st.ModTime(),
	}, nil
}

// Stat reports size and modification time for name.
func (l *localStorage) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	if !validName(name) {
		return ObjectInfo{}, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	st, err := l.root.Stat(name)
	if err != nil {
		return ObjectInfo{}, mapNotExist(name, err)
	}
	if !st.Mode().IsRegular() {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{Name: name, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// Open returns the file positioned at its start, with ContentType sniffed from the content.
func (l *localStorage) Open(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	if !validName(name) {
		return nil, ObjectInfo{}, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := l.root.Open(name)
	if err != nil {
		return nil, ObjectInfo{}, mapNotExist(name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("detect content type of %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("rewind %s: %w", name, err)
	}

	return f, ObjectInfo{
		Name:         name,
		Size:         st.Size(),
		ContentType:  mt.String(),
		LastModified: st.ModTime(),
	}, nil
}

// Ping checks the root directory is still reachable.
func (l *localStorage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := l.root.Stat(".")
	if err != nil {
		return fmt.Errorf("stat storage directory %s: %w", l.dir, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", l.dir)
	}
	return nil
}

func (l *localStorage) Close() error {
	return l.root.Close()
}

func mapNotExist(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("open %s: %w", name, err)
}

// sniffLen matches the amount of content mimetype inspects by default.
const sniffLen = 3072

// headBuffer keeps the first sniffLen bytes written to it and discards the rest.
type headBuffer struct {
	buf []byte
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := sniffLen - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}

func (h *headBuffer) Bytes() []byte {
	return h.buf
}
