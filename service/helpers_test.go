package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/gunhee098/my-next-project-sub000/config"
	"github.com/gunhee098/my-next-project-sub000/models"
)

// newTestDB 每个测试一个独立的内存 SQLite，单连接保证写入串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.InitDB(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { config.CloseDB(db) })
	return db
}

// newFileTestDB 文件型 SQLite，多连接，用于并发场景；params 追加到 DSN
func newFileTestDB(t *testing.T, maxConns int, params string) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "blog.db")
	if params != "" {
		dsn += "?" + params
	}
	db, err := config.InitDB(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: maxConns,
		MaxIdleConns: maxConns,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { config.CloseDB(db) })
	return db
}

func mustUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Password: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustPost(t *testing.T, db *gorm.DB, owner *models.User, title, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: owner.ID, Title: title, Content: content}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func mustComment(t *testing.T, db *gorm.DB, owner *models.User, post *models.Post, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{UserID: owner.ID, PostID: post.ID, Content: content}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return c
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	removeErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Put(_ context.Context, name string, r io.Reader, _ int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	m.types[name] = contentType
	return nil
}

func (m *memStorage) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, "", ErrImageNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.types[name], nil
}

func (m *memStorage) Remove(_ context.Context, name string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	delete(m.types, name)
	return nil
}

func (m *memStorage) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

type recordingReleaser struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingReleaser) Release(_ context.Context, imageURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, imageURL)
}
