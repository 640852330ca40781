package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qaforum/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "materials/a.pdf", want: "materials/a.pdf"},
		{in: "materials//b/../a.pdf", want: "materials/a.pdf"},
		{in: `images\x.webp`, want: "images/x.webp"},
		{in: "", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "../secret", wantErr: true},
		{in: "a/../../secret", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "lecture_notes.pdf", SanitizeFilename("lecture notes.pdf"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "file", SanitizeFilename("..."))
	assert.Equal(t, "report.docx", SanitizeFilename(`C:\Users\me\report.docx`))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)+".pdf"), 100)
}

func TestNew(t *testing.T) {
	s, err := New(&config.Config{StorageProvider: "local", UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, s)

	s, err = New(&config.Config{StorageProvider: "cloudinary", CloudinaryCloudName: "demo", CloudinaryAPIKey: "k", CloudinaryAPISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &CloudinaryStore{}, s)

	_, err = New(&config.Config{StorageProvider: "s3"})
	assert.Error(t, err)
}

func TestDiskStore_PutAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStore(root, "uploads/")
	ctx := context.Background()

	obj, err := s.Put(ctx, "materials/abc_notes.pdf", "application/pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "materials/abc_notes.pdf", obj.Key)
	assert.Equal(t, "/uploads/materials/abc_notes.pdf", obj.URL)
	assert.Equal(t, int64(5), obj.Size)

	data, err := os.ReadFile(filepath.Join(root, "materials", "abc_notes.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Keys are unique; a second write must not clobber the first.
	_, err = s.Put(ctx, "materials/abc_notes.pdf", "application/pdf", strings.NewReader("again"))
	assert.Error(t, err)

	require.NoError(t, s.Delete(ctx, obj.Key))
	require.NoError(t, s.Delete(ctx, obj.Key))
	_, err = os.Stat(filepath.Join(root, "materials", "abc_notes.pdf"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Put(ctx, "../escape", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCloudinaryStore_Put(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"qaforum/materials/abc_notes.pdf","resource_type":"raw","secure_url":"https://res.cloudinary.com/demo/raw/upload/qaforum/materials/abc_notes.pdf","bytes":5}`))
	}))
	defer srv.Close()

	s, err := NewCloudinaryStore("demo", "key", "secret", "qaforum")
	require.NoError(t, err)
	s.cld.Config.API.UploadPrefix = srv.URL

	obj, err := s.Put(context.Background(), "materials/abc_notes.pdf", "application/pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/demo/raw/upload")
	assert.Equal(t, "raw/qaforum/materials/abc_notes.pdf", obj.Key)
	assert.Equal(t, "https://res.cloudinary.com/demo/raw/upload/qaforum/materials/abc_notes.pdf", obj.URL)
	assert.Equal(t, int64(5), obj.Size)
}

func TestCloudinaryStore_DeleteRejectsBareKey(t *testing.T) {
	s, err := NewCloudinaryStore("demo", "key", "secret", "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete(context.Background(), "nofolder"), ErrInvalidKey)
}
