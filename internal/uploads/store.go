// Package uploads persists user images (blood test scans, progress photos)
// and hands back the public URL stored on the record.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image format")
)

type Store interface {
	// Save stores the file and returns its public URL. prefix is the form
	// field name and becomes the start of the generated file name.
	Save(ctx context.Context, fh *multipart.FileHeader, prefix string) (string, error)
	// Remove deletes a previously saved file by its public URL.
	Remove(ctx context.Context, url string) error
}

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// CheckImage validates the size and content type of an uploaded image.
func CheckImage(fh *multipart.FileHeader, maxBytes int64) error {
	if maxBytes > 0 && fh.Size > maxBytes {
		return fmt.Errorf("%w: limit is %d MB", ErrTooLarge, maxBytes/(1024*1024))
	}
	contentType := strings.ToLower(fh.Header.Get("Content-Type"))
	if _, ok := imageTypes[contentType]; !ok {
		return fmt.Errorf("%w: only JPEG, PNG, WEBP and HEIC are allowed", ErrUnsupportedType)
	}
	return nil
}

// objectName derives the extension from the checked content type only; the
// client's file name never reaches the stored name.
func objectName(fh *multipart.FileHeader, prefix string) string {
	ext, ok := imageTypes[strings.ToLower(fh.Header.Get("Content-Type"))]
	if !ok {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s-%s%s", prefix, uuid.New().String(), ext)
}
