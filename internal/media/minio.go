package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage stores objects in an S3 compatible bucket.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioClient connects to an S3 compatible endpoint with static keys.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

// NewMinioStorage creates a storage on bucket. Objects are addressed as
// publicURL + "/" + key; an empty publicURL falls back to the client's
// endpoint in path style.
func NewMinioStorage(client *minio.Client, bucket, publicURL string) *MinioStorage {
	publicURL = strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if publicURL == "" && client != nil {
		publicURL = fmt.Sprintf("%s/%s", strings.TrimRight(client.EndpointURL().String(), "/"), bucket)
	}
	return &MinioStorage{client: client, bucket: bucket, publicURL: publicURL}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func (m *MinioStorage) Upload(ctx context.Context, path, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if progress != nil {
		opts.Progress = newProgressSink(size, progress)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, opts); err != nil {
		return "", err
	}
	return m.publicURL + "/" + key, nil
}

func (m *MinioStorage) Delete(ctx context.Context, url string) error {
	key, ok := m.keyOf(url)
	if !ok {
		return ErrForeignURL
	}

	// check object
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if isMinioNotFoundErr(err) {
		return ErrObjectNotFound
	} else if err != nil {
		return err
	}

	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *MinioStorage) Owns(url string) bool {
	_, ok := m.keyOf(url)
	return ok
}

func (m *MinioStorage) keyOf(url string) (string, bool) {
	trimmed := strings.TrimSpace(url)
	if key, ok := gsObjectKey(trimmed); ok {
		return key, true
	}
	if m.publicURL == "" || !strings.HasPrefix(trimmed, m.publicURL+"/") {
		return "", false
	}
	key := strings.TrimPrefix(trimmed, m.publicURL+"/")
	if idx := strings.IndexAny(key, "?#"); idx >= 0 {
		key = key[:idx]
	}
	return key, key != ""
}

func isMinioNotFoundErr(err error) bool {
	return minio.ToErrorResponse(err).StatusCode == http.StatusNotFound
}
