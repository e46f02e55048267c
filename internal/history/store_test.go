package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/vidgrab/vidgrab/internal/domain"
)

// storeTest exercises the Store contract shared by both implementations.
func storeTest(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List on empty store failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("empty store has %d entries", len(entries))
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < domain.HistoryCap+5; i++ {
		err := s.Append(ctx, domain.HistoryEntry{
			ID:       fmt.Sprintf("id-%03d", i),
			Platform: domain.PlatformTikTok,
			URL:      fmt.Sprintf("https://www.tiktok.com/@u/video/%d", i),
			Title:    fmt.Sprintf("video %d", i),
			SavedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != domain.HistoryCap {
		t.Fatalf("got %d entries, want cap %d", len(entries), domain.HistoryCap)
	}
	// Most-recent-first: newest entry leads, oldest five evicted.
	if entries[0].ID != fmt.Sprintf("id-%03d", domain.HistoryCap+4) {
		t.Errorf("entries[0].ID = %s, want newest", entries[0].ID)
	}
	last := entries[len(entries)-1]
	if last.ID != "id-005" {
		t.Errorf("oldest retained = %s, want id-005", last.ID)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	entries, _ = s.List(ctx)
	if len(entries) != 0 {
		t.Errorf("store has %d entries after Clear", len(entries))
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	storeTest(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	storeTest(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	entry := domain.HistoryEntry{
		ID:       "persisted",
		Platform: domain.PlatformFacebook,
		URL:      "https://fb.watch/abc/",
		Title:    "survives restart",
		MediaURL: "https://cdn.example.com/v.mp4",
		SavedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.Append(ctx, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	entries, err := s2.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries after reopen, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != entry.ID || got.Platform != entry.Platform || got.Title != entry.Title ||
		got.MediaURL != entry.MediaURL || !got.SavedAt.Equal(entry.SavedAt) {
		t.Errorf("entry after reopen = %+v, want %+v", got, entry)
	}
}
