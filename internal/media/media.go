package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNoFile         = errors.New("no file provided")
	ErrFileTooLarge   = errors.New("file exceeds the size limit")
	ErrNotImage       = errors.New("file is not a supported image")
	ErrObjectNotFound = errors.New("storage object not found")
	ErrInvalidPath    = errors.New("invalid storage path")
	ErrForeignURL     = errors.New("url does not belong to this storage")
)

// ProgressFunc receives the transferred fraction in [0, 1].
type ProgressFunc func(fraction float64)

// Storage is a durable object store that hands out fetchable URLs.
type Storage interface {
	Upload(ctx context.Context, path, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error)
	Delete(ctx context.Context, url string) error
	// Owns reports whether url was issued by this storage.
	Owns(url string) bool
}

// File is an in-memory upload candidate: a multipart part, a decoded data:
// URL or a file read from disk.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// NewFile wraps data, deriving Size from its length.
func NewFile(name, contentType string, data []byte) File {
	return File{Name: name, ContentType: contentType, Size: int64(len(data)), Data: data}
}

func (f File) Empty() bool {
	return len(f.Data) == 0
}

// UploadError wraps a storage failure for the destination path.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// gs://bucket/key URLs carry the object key after the bucket name.
func gsObjectKey(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "gs://") {
		return "", false
	}
	rest := strings.TrimPrefix(raw, "gs://")
	idx := strings.Index(rest, "/")
	if idx < 0 || idx == len(rest)-1 {
		return "", false
	}
	return rest[idx+1:], true
}

// cleanKey normalizes a destination path into a storage key.
func cleanKey(path string) (string, error) {
	key := strings.Trim(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "/")
	if key == "" {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return key, nil
}

// progressReader counts bytes read through it and reports the fraction.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func withProgress(r io.Reader, total int64, progress ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.advance(n)
	return n, err
}

func (p *progressReader) advance(n int) {
	if n <= 0 {
		return
	}
	p.read += int64(n)
	if p.total > 0 {
		fraction := float64(p.read) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
		p.progress(fraction)
	}
}

// progressSink satisfies minio's Progress reader: every Read is a report of
// bytes already sent.
type progressSink struct {
	progressReader
}

func newProgressSink(total int64, progress ProgressFunc) *progressSink {
	if progress == nil {
		return nil
	}
	return &progressSink{progressReader{total: total, progress: progress}}
}

func (s *progressSink) Read(buf []byte) (int, error) {
	s.advance(len(buf))
	return len(buf), nil
}
