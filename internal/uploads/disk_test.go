package uploads

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a real multipart.FileHeader by parsing a request body.
func fileHeader(t *testing.T, field, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}

func TestDiskStoreSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(filepath.Join(dir, "uploads"), "/uploads/")
	require.NoError(t, err)
	fh := fileHeader(t, "photo", "front.PNG", "image/png", []byte("png-bytes"))

	url, err := store.Save(context.Background(), fh, "photo")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "/uploads/photo-"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	saved := filepath.Join(dir, "uploads", strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Remove(context.Background(), url))
	_, err = os.Stat(saved)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(context.Background(), url), "removing twice is not an error")
}

func TestDiskStoreRemoveRejectsForeignURL(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	assert.Error(t, store.Remove(context.Background(), "https://cdn.example.com/x.jpg"))
	assert.Error(t, store.Remove(context.Background(), "/uploads/../etc/passwd"))
}

func TestCheckImage(t *testing.T) {
	ok := fileHeader(t, "photo", "a.jpg", "image/jpeg", []byte("jpg"))
	assert.NoError(t, CheckImage(ok, 5*1024*1024))

	pdf := fileHeader(t, "photo", "a.pdf", "application/pdf", []byte("pdf"))
	assert.ErrorIs(t, CheckImage(pdf, 5*1024*1024), ErrUnsupportedType)

	big := fileHeader(t, "photo", "a.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 2048))
	assert.ErrorIs(t, CheckImage(big, 1024), ErrTooLarge)
}

func TestDiskStoreIgnoresClientExtension(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads")
	require.NoError(t, err)

	tests := []struct {
		filename    string
		contentType string
		wantExt     string
	}{
		{"evil.html", "image/png", ".png"},
		{"shot.svg", "image/jpeg", ".jpg"},
		{"noext", "image/webp", ".webp"},
		{"scan.HEIC", "image/heic", ".heic"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			fh := fileHeader(t, "photo", tt.filename, tt.contentType, []byte("<script>alert(1)</script>"))
			require.NoError(t, CheckImage(fh, 1024))

			url, err := store.Save(context.Background(), fh, "photo")
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, filepath.Ext(url))
			assert.NotContains(t, url, ".html")
		})
	}
}
