package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var memoryDBSequence atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()

	name := fmt.Sprintf("file:notes_store_%d?mode=memory&cache=shared", memoryDBSequence.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Note{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := NewStore(StoreConfig{
		Database: db,
		Clock:    func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) },
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func scheduleOf(t *testing.T, raw string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("bad schedule literal %q: %v", raw, err)
	}
	utc := parsed.UTC()
	return &utc
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, "first", "", nil)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	second, err := store.Insert(ctx, "second", "", nil)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestInsertDefaultsToEmptyStrings(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Insert(context.Background(), "", "", nil)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	loaded, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded.Title != "" || loaded.Content != "" {
		t.Fatalf("expected empty title and content, got %q / %q", loaded.Title, loaded.Content)
	}
	if loaded.ScheduleAt != nil {
		t.Fatalf("expected nil schedule, got %v", loaded.ScheduleAt)
	}
}

func TestConcurrentInsertsNeverCollide(t *testing.T) {
	store := newTestStore(t)

	const workers = 16
	ids := make([]int64, workers)
	var group sync.WaitGroup
	for i := 0; i < workers; i++ {
		group.Add(1)
		go func(slot int) {
			defer group.Done()
			note, err := store.Insert(context.Background(), fmt.Sprintf("note-%d", slot), "", nil)
			if err != nil {
				t.Errorf("insert %d failed: %v", slot, err)
				return
			}
			ids[slot] = note.ID
		}(i)
	}
	group.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		if id == 0 {
			t.Fatalf("missing id in %v", ids)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d in %v", id, ids)
		}
		seen[id] = true
	}
}

func TestFindScheduledInRangeIsHalfOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	atStart, err := store.Insert(ctx, "at start", "", &start)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	lastSecond, err := store.Insert(ctx, "last second", "", scheduleOf(t, "2024-03-01T23:59:59Z"))
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if _, err := store.Insert(ctx, "at end", "", &end); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if _, err := store.Insert(ctx, "no schedule", "", nil); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	matched, err := store.FindScheduledInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}

	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
	if matched[0].ID != atStart.ID || matched[1].ID != lastSecond.ID {
		t.Fatalf("unexpected match order: %v", matched)
	}
}

func TestFindScheduledInRangeSkipsUnscheduledNotes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, "plain note", "no reminder", nil); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	matched, err := store.FindScheduledInRange(ctx,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %d", len(matched))
	}
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "original", "body", scheduleOf(t, "2024-03-01T09:00:00Z"))
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	newTitle := "renamed"
	updated, err := store.Update(ctx, created.ID, UpdateFields{Title: &newTitle})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("expected renamed title, got %q", updated.Title)
	}
	if updated.Content != "body" {
		t.Fatalf("content should be untouched, got %q", updated.Content)
	}
	if updated.ScheduleAt == nil {
		t.Fatalf("schedule should be untouched")
	}
}

func TestUpdateClearsSchedule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "reminder", "", scheduleOf(t, "2024-03-01T09:00:00Z"))
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	updated, err := store.Update(ctx, created.ID, UpdateFields{ClearSchedule: true})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.ScheduleAt != nil {
		t.Fatalf("expected cleared schedule, got %v", updated.ScheduleAt)
	}

	matched, err := store.FindScheduledInRange(ctx,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("cleared note should not match, got %d", len(matched))
	}
}

func TestUpdateUnknownNoteReportsNotFound(t *testing.T) {
	store := newTestStore(t)

	title := "anything"
	_, err := store.Update(context.Background(), 42, UpdateFields{Title: &title})
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestDeleteByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "to delete", "", nil)
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	if err := store.DeleteByID(ctx, created.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.GetByID(ctx, created.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound after delete, got %v", err)
	}
	if err := store.DeleteByID(ctx, created.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound on repeat delete, got %v", err)
	}
}

func TestListPagePaginates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := store.Insert(ctx, fmt.Sprintf("note-%d", i+1), "", nil); err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	page, err := store.ListPage(ctx, 2, 5)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if page.TotalPages != 2 {
		t.Fatalf("expected 2 total pages, got %d", page.TotalPages)
	}
	if page.CurrentPage != 2 {
		t.Fatalf("expected current page 2, got %d", page.CurrentPage)
	}
	if len(page.Notes) != 2 {
		t.Fatalf("expected 2 notes on page 2, got %d", len(page.Notes))
	}
	if page.Notes[0].Title != "note-6" {
		t.Fatalf("unexpected first note on page 2: %q", page.Notes[0].Title)
	}
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	if err == nil {
		t.Fatalf("expected error for missing database")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %T", err)
	}
	if storeErr.Code() != "notes.store.new.missing_database" {
		t.Fatalf("unexpected error code: %s", storeErr.Code())
	}
}
