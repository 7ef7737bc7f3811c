package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssets_FetchStoresImage(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	assets := NewAssets(dir, "", nil)

	ref := assets.Fetch(context.Background(), server.URL+"/out/1.png?Expires=1")
	require.True(t, strings.HasPrefix(ref, DefaultImagePrefix), ref)
	assert.True(t, strings.HasSuffix(ref, ".jpg"), ref)

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(ref, DefaultImagePrefix)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	// Second fetch of the same URL reuses the stored file
	again := assets.Fetch(context.Background(), server.URL+"/out/1.png?Expires=1")
	assert.Equal(t, ref, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAssets_FetchFailureKeepsRemoteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	assets := NewAssets(t.TempDir(), "/static/images", nil)

	remote := server.URL + "/expired.png"
	assert.Equal(t, remote, assets.Fetch(context.Background(), remote))
}

func TestAssets_FetchPassesThroughLocalRefs(t *testing.T) {
	assets := NewAssets(t.TempDir(), "", nil)

	assert.Equal(t, "/static/images/a.png", assets.Fetch(context.Background(), "/static/images/a.png"))
	assert.Equal(t, "", assets.Fetch(context.Background(), ""))
}

func TestImageExt(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		expected    string
	}{
		{"https://x/a.png", "image/png", ".png"},
		{"https://x/a", "image/webp", ".webp"},
		{"https://x/a.jpeg?sig=1", "application/octet-stream", ".jpeg"},
		{"https://x/a", "", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.url+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.expected, imageExt(tt.url, tt.contentType))
		})
	}
}
