package media

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps objects in memory. It is meant for tests and local
// experiments; URLs look like "https://storage.test/<key>".
type MemoryStorage struct {
	BaseURL string

	// UploadErr and DeleteErr, when set, are returned by the matching call.
	UploadErr error
	DeleteErr error

	mu      sync.Mutex
	objects map[string]MemoryObject
	deletes []string
}

// MemoryObject is one stored blob.
type MemoryObject struct {
	ContentType string
	Data        []byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		BaseURL: "https://storage.test",
		objects: map[string]MemoryObject{},
	}
}

func (s *MemoryStorage) Upload(ctx context.Context, path, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	if s.UploadErr != nil {
		return "", s.UploadErr
	}
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(withProgress(readerWithContext(ctx, r), size, progress))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = MemoryObject{ContentType: contentType, Data: data}
	return s.BaseURL + "/" + key, nil
}

func (s *MemoryStorage) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, url)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	key, ok := s.keyOf(url)
	if !ok {
		return ErrForeignURL
	}
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) Owns(url string) bool {
	_, ok := s.keyOf(url)
	return ok
}

func (s *MemoryStorage) keyOf(url string) (string, bool) {
	if key, ok := gsObjectKey(url); ok {
		return key, true
	}
	if !strings.HasPrefix(url, s.BaseURL+"/") {
		return "", false
	}
	key := strings.TrimPrefix(url, s.BaseURL+"/")
	return key, key != ""
}

// Object returns the stored object for url.
func (s *MemoryStorage) Object(url string) (MemoryObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keyOf(url)
	if !ok {
		return MemoryObject{}, false
	}
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists stored keys in lexical order.
func (s *MemoryStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Deletes returns every URL passed to Delete, including failed attempts.
func (s *MemoryStorage) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}
