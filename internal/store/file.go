package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/jonathan/storybook/internal/types"
)

// FileStore writes each book as an indented JSON file
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, "book_"+id+".json")
}

// Save writes the book atomically
func (s *FileStore) Save(_ context.Context, book *types.Book) error {
	if !ValidID(book.ID) {
		return fmt.Errorf("invalid book id %q", book.ID)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create book directory: %w", err)
	}

	data, err := sonic.ConfigDefault.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "book_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write book: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write book: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(book.ID)); err != nil {
		return fmt.Errorf("failed to save book %s: %w", book.ID, err)
	}
	return nil
}

// Load reads a book by id
func (s *FileStore) Load(_ context.Context, id string) (*types.Book, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read book %s: %w", id, err)
	}

	var book types.Book
	if err := sonic.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to parse book %s: %w", id, err)
	}
	return &book, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
