package uploads

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes files under Dir and serves them at URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *DiskStore) Save(_ context.Context, fh *multipart.FileHeader, prefix string) (string, error) {
	name := objectName(fh, prefix)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.Dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.URLPrefix + "/" + name, nil
}

func (s *DiskStore) Remove(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, s.URLPrefix+"/")
	if name == url || strings.Contains(name, "/") || name == "" {
		return fmt.Errorf("not a local upload: %s", url)
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
