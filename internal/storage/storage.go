// Package storage persists uploaded files on Cloudinary or the local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"qaforum/internal/config"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Object describes a stored file. Key is what Delete expects.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// FileStore is implemented by every storage backend.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (Object, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by STORAGE_PROVIDER.
func New(cfg *config.Config) (FileStore, error) {
	switch cfg.StorageProvider {
	case "cloudinary":
		return NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	case "", "local":
		return NewDiskStore(cfg.UploadDir, cfg.UploadPublicPath), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}
}

// cleanKey normalizes a slash-separated key and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore so the
// original name can be embedded in a key.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
