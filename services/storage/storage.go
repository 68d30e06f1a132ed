// Package storage puts uploaded and generated files somewhere a browser can fetch them.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store is a flat key/value file store with public URLs
type Store interface {
	Upload(ctx context.Context, key string, data io.ReadSeeker, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// UploadDir uploads every file below dir under prefix and returns the URL of
// the file named entry (relative to dir)
func UploadDir(ctx context.Context, s Store, dir, prefix, entry string) (string, error) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		key := prefix + "/" + filepath.ToSlash(rel)
		if _, err := s.Upload(ctx, key, f, ContentType(path)); err != nil {
			return fmt.Errorf("failed to upload %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.URL(prefix + "/" + entry), nil
}

// GenerateKey generates a unique key for file storage
func GenerateKey(prefix, filename string) string {
	timestamp := time.Now().UnixMilli()
	ext := filepath.Ext(filename)
	base := SanitizeName(strings.TrimSuffix(filepath.Base(filename), ext))

	return fmt.Sprintf("%s/%d_%s%s", prefix, timestamp, base, strings.ToLower(ext))
}

// SanitizeName keeps letters, digits, dashes and underscores
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// ContentType returns the content type for a filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".m4s":
		return "video/iso.segment"
	case ".mpd":
		return "application/dash+xml"
	default:
		return "application/octet-stream"
	}
}
