package media

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 将文件保存在本地上传目录，并通过 gin 静态路由对外提供访问
type LocalStorage struct {
	dir     string
	urlPath string
	baseURL string
}

// NewLocalStorage stores objects below dir and serves them under urlPath
// (e.g. "/static/uploads"). baseURL is the site origin; issued URLs are
// absolute when it is set.
func NewLocalStorage(dir, urlPath, baseURL string) *LocalStorage {
	urlPath = "/" + strings.Trim(strings.TrimSpace(urlPath), "/")
	return &LocalStorage{
		dir:     dir,
		urlPath: urlPath,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *LocalStorage) Dir() string     { return s.dir }
func (s *LocalStorage) URLPath() string { return s.urlPath }

func (s *LocalStorage) Upload(ctx context.Context, path, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, withProgress(readerWithContext(ctx, r), size, progress)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return s.baseURL + s.urlPath + "/" + key, nil
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	key, ok := s.keyOf(url)
	if !ok {
		return ErrForeignURL
	}
	if _, err := cleanKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (s *LocalStorage) Owns(url string) bool {
	_, ok := s.keyOf(url)
	return ok
}

func (s *LocalStorage) keyOf(url string) (string, bool) {
	trimmed := strings.TrimSpace(url)
	if key, ok := gsObjectKey(trimmed); ok {
		return key, true
	}
	if s.baseURL != "" && strings.HasPrefix(trimmed, s.baseURL+"/") {
		trimmed = strings.TrimPrefix(trimmed, s.baseURL)
	}
	if !strings.HasPrefix(trimmed, s.urlPath+"/") {
		return "", false
	}
	key := strings.TrimPrefix(trimmed, s.urlPath+"/")
	if idx := strings.IndexAny(key, "?#"); idx >= 0 {
		key = key[:idx]
	}
	return key, key != ""
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
