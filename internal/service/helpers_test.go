package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/store"
	"github.com/clinicblog/internal/store/gormstore"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

// countingStore records comment batch sizes on top of a real store.
type countingStore struct {
	store.Store

	mu         sync.Mutex
	batchSizes []int
}

func (c *countingStore) DeleteComments(ctx context.Context, postID string, ids []string) error {
	c.mu.Lock()
	c.batchSizes = append(c.batchSizes, len(ids))
	c.mu.Unlock()
	return c.Store.DeleteComments(ctx, postID, ids)
}

func (c *countingStore) batches() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.batchSizes...)
}

type postFixture struct {
	gdb     *gorm.DB
	store   *countingStore
	storage *media.MemoryStorage
	posts   *PostService
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	gdb := setupServiceTestDB(t)
	st := &countingStore{Store: gormstore.New(gdb)}
	storage := media.NewMemoryStorage()
	gateway := media.NewGateway(storage, logging.Discard())
	return &postFixture{
		gdb:     gdb,
		store:   st,
		storage: storage,
		posts:   NewPostService(st, gateway, logging.Discard()),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngFile(t *testing.T, name string) *media.File {
	t.Helper()
	file := media.NewFile(name, "image/png", pngBytes(t, 64, 48))
	return &file
}

const richBody = `<p>Cuidados com a <strong>gestação</strong>.</p>`
