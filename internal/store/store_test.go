package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/storybook/internal/config"
	"github.com/jonathan/storybook/internal/types"
)

func sampleBook(id string) *types.Book {
	return &types.Book{
		ID:                id,
		Title:             "小兔",
		Story:             "小兔，在森林里散步。",
		Outline:           "小兔的一天",
		CharacterName:     "小兔",
		CharacterFeatures: "白色的毛，红色的眼睛",
		Scenes: []types.Scene{{
			Text:              "小兔，在森林里散步。",
			ImagePrompt:       "童话风格的插图，可爱温馨，森林",
			NegativePrompt:    "黑暗",
			CharacterFeatures: "白色的毛，红色的眼睛",
			ImageURL:          "/static/images/a.png",
		}},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewBookID(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

	id := NewBookID(now)
	assert.True(t, strings.HasPrefix(id, "20240501093015-"), id)
	assert.Len(t, id, 14+1+8)
	assert.True(t, ValidID(id))

	assert.NotEqual(t, id, NewBookID(now))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("20240501093015-0a1b2c3d"))
	assert.False(t, ValidID("../../etc/passwd"))
	assert.False(t, ValidID("20240501093015-XYZ"))
	assert.False(t, ValidID(""))
}

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	book := sampleBook("20240501120000-deadbeef")

	require.NoError(t, s.Save(context.Background(), book))

	data, err := os.ReadFile(filepath.Join(dir, "book_20240501120000-deadbeef.json"))
	require.NoError(t, err)
	// Chinese text is written as-is, not escaped
	assert.Contains(t, string(data), "在森林里散步")

	loaded, err := s.Load(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, loaded)
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(t.TempDir())

	_, err := s.Load(context.Background(), "20240501120000-00000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveRejectsBadID(t *testing.T) {
	s := NewFileStore(t.TempDir())

	err := s.Save(context.Background(), sampleBook("../escape"))
	assert.Error(t, err)
}

func TestOpen_File(t *testing.T) {
	cfg := config.Defaults()
	cfg.StaticDir = t.TempDir()

	s, err := Open(context.Background(), &cfg)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*FileStore)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Config{StoreBackend: "s3"}

	_, err := Open(context.Background(), &cfg)
	assert.Error(t, err)
}

func TestBookKey(t *testing.T) {
	assert.Equal(t, "book:20240501120000-deadbeef", bookKey("20240501120000-deadbeef"))
}
