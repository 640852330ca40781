package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads to a Cloudinary folder. Keys returned by Put are
// "<resource_type>/<public_id>".
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

var _ FileStore = (*CloudinaryStore)(nil)

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: strings.Trim(folder, "/")}, nil
}

// Put implements FileStore.
func (s *CloudinaryStore) Put(ctx context.Context, key, contentType string, r io.Reader) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	dir, name := path.Split(key)
	folder := strings.Trim(path.Join(s.folder, dir), "/")

	resourceType := "raw"
	if strings.HasPrefix(contentType, "image/") {
		resourceType = "image"
		name = strings.TrimSuffix(name, path.Ext(name))
	}

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		PublicID:     name,
		ResourceType: resourceType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary upload %s: %w", key, err)
	}
	if resp.Error.Message != "" {
		return Object{}, fmt.Errorf("cloudinary upload %s: %s", key, resp.Error.Message)
	}

	rt := resp.ResourceType
	if rt == "" {
		rt = resourceType
	}
	return Object{
		Key:  rt + "/" + resp.PublicID,
		URL:  resp.SecureURL,
		Size: int64(resp.Bytes),
	}, nil
}

// Delete implements FileStore.
func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	resourceType, publicID, ok := strings.Cut(key, "/")
	if !ok || publicID == "" {
		return ErrInvalidKey
	}
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", key, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", key, resp.Error.Message)
	}
	return nil
}
