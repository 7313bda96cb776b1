package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestJournal creates an in-memory SQLite journal for testing
func createTestJournal(t *testing.T) *Journal {
	t.Helper()

	journal, err := NewJournal(":memory:")
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}

	t.Cleanup(func() {
		_ = journal.Close()
	})

	return journal
}

func TestNewJournal(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		journal, err := NewJournal(":memory:")
		if err != nil {
			t.Fatalf("failed to create in-memory journal: %v", err)
		}
		defer func() { _ = journal.Close() }()

		if journal.db == nil {
			t.Error("journal database is nil")
		}
	})

	t.Run("file-based database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "telemetry.db")

		journal, err := NewJournal(path)
		if err != nil {
			t.Fatalf("failed to create file-based journal: %v", err)
		}
		if _, err := journal.Add(context.Background(), Entry{SessionID: "s", Kind: KindListen, SubjectID: 1, Delivered: true}); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		_ = journal.Close()

		reopened, err := NewJournal(path)
		if err != nil {
			t.Fatalf("failed to reopen journal: %v", err)
		}
		defer func() { _ = reopened.Close() }()

		count, err := reopened.Count(context.Background(), "", false)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected entry to persist, got count %d", count)
		}
	})
}

func TestJournalAddAndRecent(t *testing.T) {
	journal := createTestJournal(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	entries := []Entry{
		{SessionID: "s1", Kind: KindListener, SubjectID: 7, Delivered: true, CreatedAt: base},
		{SessionID: "s1", Kind: KindListen, SubjectID: 101, Delivered: true, CreatedAt: base.Add(time.Second)},
		{SessionID: "s1", Kind: KindListen, SubjectID: 102, Error: "status 503", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		id, err := journal.Add(ctx, e)
		if err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		if id <= 0 {
			t.Errorf("expected positive id, got %d", id)
		}
	}

	all, err := journal.Recent(ctx, 0, "")
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].SubjectID != 102 {
		t.Errorf("expected newest first, got subject %d", all[0].SubjectID)
	}
	if all[0].Delivered || all[0].Error != "status 503" {
		t.Errorf("expected failed entry with error, got %+v", all[0])
	}
	if all[2].Kind != KindListener || all[2].Error != "" {
		t.Errorf("unexpected oldest entry %+v", all[2])
	}

	listens, err := journal.Recent(ctx, 1, KindListen)
	if err != nil {
		t.Fatalf("failed to get recent listens: %v", err)
	}
	if len(listens) != 1 || listens[0].SubjectID != 102 {
		t.Errorf("expected only newest listen, got %+v", listens)
	}
}

func TestJournalCount(t *testing.T) {
	journal := createTestJournal(t)
	ctx := context.Background()

	add := func(kind Kind, delivered bool) {
		t.Helper()
		if _, err := journal.Add(ctx, Entry{SessionID: "s", Kind: kind, SubjectID: 1, Delivered: delivered}); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
	}
	add(KindListener, true)
	add(KindListen, true)
	add(KindListen, true)
	add(KindListen, false)

	tests := []struct {
		name          string
		kind          Kind
		deliveredOnly bool
		want          int
	}{
		{"all", "", false, 4},
		{"delivered", "", true, 3},
		{"listens", KindListen, false, 3},
		{"delivered listens", KindListen, true, 2},
		{"listeners", KindListener, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := journal.Count(ctx, tt.kind, tt.deliveredOnly)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJournalCleanup(t *testing.T) {
	journal := createTestJournal(t)
	ctx := context.Background()

	old := Entry{SessionID: "s", Kind: KindListen, SubjectID: 1, Delivered: true, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := Entry{SessionID: "s", Kind: KindListen, SubjectID: 2, Delivered: true}
	for _, e := range []Entry{old, fresh} {
		if _, err := journal.Add(ctx, e); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
	}

	deleted, err := journal.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	remaining, err := journal.Recent(ctx, 0, "")
	if err != nil {
		t.Fatalf("failed to get recent: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SubjectID != 2 {
		t.Errorf("expected only the fresh entry to remain, got %+v", remaining)
	}
}
