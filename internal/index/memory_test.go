package index

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func bm(id string, offset time.Duration) domain.Bookmark {
	return domain.Bookmark{
		ID:        id,
		Title:     id,
		URL:       "https://" + id + ".example.com",
		UserID:    "u1",
		CreatedAt: base.Add(offset),
	}
}

func ids(bs []domain.Bookmark) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestNewBookmarkList(t *testing.T) {
	list := NewBookmarkList()
	if list == nil {
		t.Fatal("NewBookmarkList() returned nil")
	}
	snap := list.Snapshot()
	if snap == nil || len(snap) != 0 {
		t.Errorf("NewBookmarkList() should start empty and non-nil, got %v", snap)
	}
}

func TestReplaceOverwrites(t *testing.T) {
	list := NewBookmarkList()
	list.Replace([]domain.Bookmark{bm("a", 0)})
	list.Replace([]domain.Bookmark{bm("b", 0), bm("c", time.Second)})

	if got := ids(list.Snapshot()); fmt.Sprint(got) != "[c b]" {
		t.Errorf("Replace() should overwrite, got %v want [c b]", got)
	}
}

func TestSnapshotOrder(t *testing.T) {
	tests := []struct {
		name  string
		input []domain.Bookmark
		want  []string
	}{
		{
			name:  "created_at descending",
			input: []domain.Bookmark{bm("old", -time.Hour), bm("new", time.Hour), bm("mid", 0)},
			want:  []string{"new", "mid", "old"},
		},
		{
			name:  "ties broken by id descending",
			input: []domain.Bookmark{bm("a", 0), bm("c", 0), bm("b", 0)},
			want:  []string{"c", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := NewBookmarkList()
			list.Replace(tt.input)
			got := ids(list.Snapshot())
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Snapshot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReplaceSameDataIsStable(t *testing.T) {
	data := []domain.Bookmark{bm("a", 0), bm("b", 0), bm("c", time.Minute)}
	list := NewBookmarkList()

	list.Replace(data)
	first := ids(list.Snapshot())
	list.Replace([]domain.Bookmark{data[2], data[0], data[1]})
	second := ids(list.Snapshot())

	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("re-fetch of identical data changed order: %v vs %v", first, second)
	}
}

func TestUpsertAndDelete(t *testing.T) {
	list := NewBookmarkList()
	list.Replace([]domain.Bookmark{bm("a", 0)})

	list.Upsert(bm("b", time.Second))
	if got := ids(list.Snapshot()); fmt.Sprint(got) != "[b a]" {
		t.Errorf("after Upsert Snapshot() = %v", got)
	}

	updated := bm("a", 0)
	updated.Title = "renamed"
	list.Upsert(updated)
	if snap := list.Snapshot(); len(snap) != 2 || snap[1].Title != "renamed" {
		t.Errorf("Upsert() should replace, got %+v", snap)
	}

	if !list.Delete("a") {
		t.Error("Delete() of present id should report true")
	}
	if list.Delete("a") {
		t.Error("Delete() of absent id should report false")
	}
	if got := ids(list.Snapshot()); fmt.Sprint(got) != "[b]" {
		t.Errorf("after Delete Snapshot() = %v, want [b]", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	list := NewBookmarkList()
	list.Replace([]domain.Bookmark{bm("a", 0)})

	snap := list.Snapshot()
	snap[0].Title = "mutated"

	if list.Snapshot()[0].Title != "a" {
		t.Error("mutating a snapshot changed the list")
	}
}

func TestConcurrentAccess(t *testing.T) {
	list := NewBookmarkList()
	var wg sync.WaitGroup

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = list.Snapshot()
		}()
	}

	// Concurrent upserts
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list.Upsert(bm(fmt.Sprintf("id-%03d", i), time.Duration(i)*time.Second))
		}(i)
	}

	wg.Wait()

	snap := list.Snapshot()
	if len(snap) != 100 {
		t.Errorf("concurrent Upsert() stored %v bookmarks, want 100", len(snap))
	}
	if first := snap[0].ID; first != "id-099" {
		t.Errorf("Snapshot()[0] = %s, want id-099", first)
	}
}
