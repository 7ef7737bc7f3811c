package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultImagePrefix is the public URL prefix for downloaded images.
const DefaultImagePrefix = "/static/images/"

// Assets stores remote images under a local directory and remembers what it
// has already downloaded.
type Assets struct {
	dir     string
	prefix  string
	options *Options

	mu    sync.Mutex
	local map[string]string // remote URL -> local reference
}

// NewAssets creates an asset fetcher writing into dir and serving under prefix.
func NewAssets(dir, prefix string, opts *Options) *Assets {
	if prefix == "" {
		prefix = DefaultImagePrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Assets{
		dir:     dir,
		prefix:  prefix,
		options: opts,
		local:   make(map[string]string),
	}
}

// Fetch downloads remoteURL and returns its local reference.
// On any failure the remote URL is returned unchanged.
func (a *Assets) Fetch(ctx context.Context, remoteURL string) string {
	if remoteURL == "" || strings.HasPrefix(remoteURL, a.prefix) {
		return remoteURL
	}

	a.mu.Lock()
	if ref, ok := a.local[remoteURL]; ok {
		a.mu.Unlock()
		return ref
	}
	a.mu.Unlock()

	ref, err := a.download(ctx, remoteURL)
	if err != nil {
		log.Warn().Err(err).Str("url", remoteURL).Msg("keeping remote image url")
		return remoteURL
	}

	a.mu.Lock()
	a.local[remoteURL] = ref
	a.mu.Unlock()

	return ref
}

func (a *Assets) download(ctx context.Context, remoteURL string) (string, error) {
	result, err := URL(ctx, remoteURL, a.options)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", &Error{URL: remoteURL, Message: "failed to create image directory", Cause: err}
	}

	name := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102150405"), uuid.NewString()[:8], imageExt(remoteURL, result.ContentType))
	if err := os.WriteFile(filepath.Join(a.dir, name), result.Body, 0644); err != nil {
		return "", &Error{URL: remoteURL, Message: "failed to write image", Cause: err}
	}

	log.Debug().Str("url", remoteURL).Str("file", name).Int("bytes", len(result.Body)).Msg("image stored")
	return a.prefix + name, nil
}

// imageExt picks a file extension from the content type, then the URL path, defaulting to .png.
func imageExt(remoteURL, contentType string) string {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && strings.HasPrefix(mediaType, "image/") {
			switch mediaType {
			case "image/jpeg":
				return ".jpg"
			case "image/png":
				return ".png"
			case "image/webp":
				return ".webp"
			}
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}

	if u, err := url.Parse(remoteURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".png", ".jpg", ".jpeg", ".webp", ".gif":
			return ext
		}
	}
	return ".png"
}
