package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/clinicblog/internal/metrics"
)

// Gateway turns user files into durable URLs on top of a Storage backend.
type Gateway struct {
	storage Storage
	logger  *slog.Logger
}

func NewGateway(storage Storage, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{storage: storage, logger: logger.With("component", "media")}
}

func checkSize(file File, limit int64) error {
	if file.Empty() {
		return ErrNoFile
	}
	size := file.Size
	if size <= 0 {
		size = int64(len(file.Data))
	}
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %s > %s", ErrFileTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}
	return nil
}

// DetectContentType sniffs the payload, falling back to the declared type
// when sniffing is inconclusive.
func DetectContentType(file File) string {
	detected := mimetype.Detect(file.Data).String()
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	if detected == "" || detected == "application/octet-stream" || detected == "text/plain" {
		if file.ContentType != "" {
			return file.ContentType
		}
	}
	return detected
}

// UploadOptimizedImage downsizes an image within opts and stores it as JPEG
// under destinationPath (extension rewritten to .jpg).
func (g *Gateway) UploadOptimizedImage(ctx context.Context, file File, destinationPath string, opts ImageOptions) (url string, err error) {
	defer func() { metrics.MediaUploads.WithLabelValues("image", metrics.Result(err)).Inc() }()

	if err := checkSize(file, opts.maxBytes()); err != nil {
		return "", err
	}
	if ct := DetectContentType(file); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	encoded, w, h, err := optimizeImage(file.Data, opts)
	if err != nil {
		return "", err
	}
	dest := strings.TrimSuffix(destinationPath, path.Ext(destinationPath)) + ".jpg"
	g.logger.Debug("image optimized", "path", dest, "width", w, "height", h,
		"from", humanize.IBytes(uint64(len(file.Data))), "to", humanize.IBytes(uint64(len(encoded))))

	return g.put(ctx, dest, "image/jpeg", encoded)
}

// Upload stores the file as-is; videos take this path.
func (g *Gateway) Upload(ctx context.Context, file File, destinationPath string, maxBytes int64) (url string, err error) {
	defer func() { metrics.MediaUploads.WithLabelValues(kindOf(file), metrics.Result(err)).Inc() }()

	if err := checkSize(file, maxBytes); err != nil {
		return "", err
	}
	return g.put(ctx, destinationPath, DetectContentType(file), file.Data)
}

func (g *Gateway) put(ctx context.Context, dest, contentType string, data []byte) (string, error) {
	progress := func(fraction float64) {
		g.logger.Debug("upload progress", "path", dest, "percent", int(fraction*100))
	}
	url, err := g.storage.Upload(ctx, dest, contentType, bytes.NewReader(data), int64(len(data)), progress)
	if err != nil {
		return "", &UploadError{Path: dest, Err: err}
	}
	g.logger.Info("media uploaded", "path", dest, "size", humanize.IBytes(uint64(len(data))))
	return url, nil
}

// IsStorageURL reports whether url points into object storage: a gs://
// reference or a URL issued by the configured backend.
func (g *Gateway) IsStorageURL(url string) bool {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "gs://") {
		return true
	}
	return g.storage.Owns(trimmed)
}

// DeleteBestEffort removes a stored object. External URLs are ignored and
// failures are only logged.
func (g *Gateway) DeleteBestEffort(ctx context.Context, url string) {
	if !g.IsStorageURL(url) {
		return
	}
	if err := g.storage.Delete(ctx, strings.TrimSpace(url)); err != nil {
		metrics.MediaDeleteFailures.Inc()
		g.logger.Warn("failed to delete stored object", "url", url, "error", err)
	}
}

func kindOf(file File) string {
	ct := DetectContentType(file)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image"
	case strings.HasPrefix(ct, "video/"):
		return "video"
	default:
		return "file"
	}
}
