package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultUploadDir  = "/tmp/qaforum/uploads"
	DefaultPublicPath = "/uploads"
)

// DiskStore writes files under a root directory that the server exposes at
// publicPath.
type DiskStore struct {
	root       string
	publicPath string
}

var _ FileStore = (*DiskStore)(nil)

func NewDiskStore(root, publicPath string) *DiskStore {
	if root == "" {
		root = DefaultUploadDir
	}
	if publicPath == "" {
		publicPath = DefaultPublicPath
	}
	return &DiskStore{root: root, publicPath: "/" + strings.Trim(publicPath, "/")}
}

// Root returns the directory files are written to.
func (s *DiskStore) Root() string { return s.root }

// PublicPath returns the URL prefix files are served under.
func (s *DiskStore) PublicPath() string { return s.publicPath }

// Put implements FileStore.
func (s *DiskStore) Put(_ context.Context, key, _ string, r io.Reader) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return Object{}, fmt.Errorf("create upload dir: %w", err)
	}

	// #nosec G304: key is cleaned and confined to root
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return Object{}, fmt.Errorf("create %s: %w", key, err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}

	return Object{Key: key, URL: s.publicPath + "/" + key, Size: n}, nil
}

// Delete implements FileStore. Missing files are not an error.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
