package shortterm

import (
	"os"
	"testing"

	"github.com/aagt-run/aagtcore/pkg/models"
)

func TestStore_AppendAndRingTruncation(t *testing.T) {
	s := NewStore(Config{Capacity: 3, MaxKeys: 10})
	key := models.MemoryKey{User: "alice"}

	for i := 0; i < 5; i++ {
		s.Append(key, models.NewTextMessage(models.RoleUser, string(rune('a'+i))))
	}

	msgs := s.Messages(key)
	if len(msgs) != 3 {
		t.Fatalf("expected ring truncated to capacity 3, got %d", len(msgs))
	}
	if msgs[0].Text() != "c" || msgs[2].Text() != "e" {
		t.Fatalf("expected oldest messages evicted, got %q..%q", msgs[0].Text(), msgs[2].Text())
	}
}

func TestStore_CrossKeyLRUEviction(t *testing.T) {
	s := NewStore(Config{Capacity: 10, MaxKeys: 2})
	a := models.MemoryKey{User: "a"}
	b := models.MemoryKey{User: "b"}
	c := models.MemoryKey{User: "c"}

	s.Append(a, models.NewTextMessage(models.RoleUser, "a1"))
	s.Append(b, models.NewTextMessage(models.RoleUser, "b1"))
	s.Append(c, models.NewTextMessage(models.RoleUser, "c1")) // evicts a (least recently used)

	if s.Len() != 2 {
		t.Fatalf("expected 2 hot keys after eviction, got %d", s.Len())
	}
	if msgs := s.Messages(a); len(msgs) != 0 {
		t.Fatalf("expected key a evicted, found %d messages", len(msgs))
	}
	if msgs := s.Messages(b); len(msgs) != 1 {
		t.Fatalf("expected key b retained, got %d messages", len(msgs))
	}
}

func TestStore_FlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(Config{Capacity: 10, MaxKeys: 10, PersistDir: dir})
	key := models.MemoryKey{User: "alice", Agent: "assistant-1"}
	s.Append(key, models.NewTextMessage(models.RoleUser, "hello"))

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected persisted bucket file, err=%v entries=%d", err, len(entries))
	}

	s2 := NewStore(Config{Capacity: 10, MaxKeys: 10, PersistDir: dir})
	if err := s2.Load(key); err != nil {
		t.Fatalf("Load: %v", err)
	}
	msgs := s2.Messages(key)
	if len(msgs) != 1 || msgs[0].Text() != "hello" {
		t.Fatalf("expected restored message, got %+v", msgs)
	}
}
