package policystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrNoDocument = errors.New("no stored policy document")

// Durable storage for the serialized PolicySet document.
type Backend interface {
	// returns ErrNoDocument if nothing has been stored yet
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	Discard(ctx context.Context) error
}

// Stores the document as a single file. Writes go through a temporary file and rename, so a crash never leaves a truncated document.
type FileBackend struct {
	Path string
}

var _ Backend = (*FileBackend)(nil)

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoDocument
	}
	return raw, err
}

func (b *FileBackend) Write(ctx context.Context, doc []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(b.Path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, b.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (b *FileBackend) Discard(ctx context.Context) error {
	err := os.Remove(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Keeps the document in process memory, for tests and ephemeral deployments.
type MemBackend struct {
	mu  sync.Mutex
	doc []byte
}

var _ Backend = (*MemBackend)(nil)

func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

func (b *MemBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc == nil {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), b.doc...), nil
}

func (b *MemBackend) Write(ctx context.Context, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = append([]byte(nil), doc...)
	return nil
}

func (b *MemBackend) Discard(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = nil
	return nil
}
