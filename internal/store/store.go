// Package store persists finished books.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/storybook/internal/config"
	"github.com/jonathan/storybook/internal/types"
)

// ErrNotFound is returned by Load when no book has the requested id
var ErrNotFound = errors.New("book not found")

// BookStore saves and loads book records
type BookStore interface {
	Save(ctx context.Context, book *types.Book) error
	Load(ctx context.Context, id string) (*types.Book, error)
	Close() error
}

var bookIDPattern = regexp.MustCompile(`^\d{14}-[0-9a-f]{8}$`)

// NewBookID returns an id of the form YYYYMMDDhhmmss-<8 hex>
func NewBookID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102150405") + "-" + suffix
}

// ValidID reports whether id has the shape produced by NewBookID
func ValidID(id string) bool {
	return bookIDPattern.MatchString(id)
}

// Open connects the backend selected in cfg
func Open(ctx context.Context, cfg *config.Config) (BookStore, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL, 0)
	case config.StoreFile, "":
		return NewFileStore(cfg.BooksDir()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
