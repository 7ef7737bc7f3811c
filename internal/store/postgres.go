package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/storybook/internal/types"
)

const createBooksTable = `CREATE TABLE IF NOT EXISTS books (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps books in a PostgreSQL table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the books table exists
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createBooksTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create books table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Save inserts or replaces a book
func (s *PostgresStore) Save(ctx context.Context, book *types.Book) error {
	content, err := sonic.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO books (id, title, content, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET title = $2, content = $3`,
		book.ID, book.Title, content, book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save book %s: %w", book.ID, err)
	}
	return nil
}

// Load retrieves a book by id
func (s *PostgresStore) Load(ctx context.Context, id string) (*types.Book, error) {
	var content []byte
	err := s.pool.QueryRow(ctx, `SELECT content FROM books WHERE id = $1`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load book %s: %w", id, err)
	}

	var book types.Book
	if err := sonic.Unmarshal(content, &book); err != nil {
		return nil, fmt.Errorf("failed to parse book %s: %w", id, err)
	}
	return &book, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
