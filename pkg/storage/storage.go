// Package storage persists binary media (uploaded images, synthesized audio)
// addressed by flat generated names.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// ObjectInfo describes a stored file.
type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// MediaStore is implemented by the local disk and MinIO backends.
type MediaStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, name string) error
}

// Pruner deletes files whose name starts with prefix and that were last
// modified before the cutoff. It returns how many were removed.
type Pruner interface {
	Prune(ctx context.Context, prefix string, before time.Time) (int, error)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidName rejects anything that could escape the store's namespace.
func ValidName(name string) bool {
	return validName.MatchString(name) && !strings.Contains(name, "..")
}

// NewName returns a fresh unique name keeping the extension of original.
func NewName(prefix, original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 10 || !validName.MatchString("x"+ext) {
		ext = ""
	}
	return prefix + "_" + uuid.NewString() + ext
}

var extTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// ContentTypeFor guesses a content type from the file extension.
func ContentTypeFor(name string) string {
	if ct, ok := extTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
