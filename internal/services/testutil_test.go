package services

import (
	"context"
	"sync"
	"testing"

	"recipethread/internal/config"
	"recipethread/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carol = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

const recipe uint = 42

func testDiscussionConfig() config.DiscussionConfig {
	return config.DiscussionConfig{
		CountDeletedChildren: true,
		MaxContentLength:     200,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { db.Close(conn) })
	return conn
}

func newTestBackend(t *testing.T) (*Backend, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	b, err := NewBackend(conn, testDiscussionConfig(), nil)
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	return b, conn
}

// mustCreate 创建评论，失败直接结束测试
func mustCreate(t *testing.T, b *Backend, parentID *uint, owner uuid.UUID, content string) uint {
	t.Helper()
	v, err := b.Create(context.Background(), recipe, parentID, owner, content)
	if err != nil {
		t.Fatalf("Create %q failed: %v", content, err)
	}
	return v.ID
}

func ptr(id uint) *uint {
	return &id
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordingScheduler) ScheduleUpdate(id uint) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}
