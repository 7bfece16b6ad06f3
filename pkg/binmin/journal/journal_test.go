package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

// at pins the journal clock.
func at(j *Journal, ts time.Time) {
	j.now = func() time.Time { return ts }
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if j.Dir() == "" {
		t.Error("Dir() is empty")
	}
}

func TestJournal_Append(t *testing.T) {
	t.Parallel()

	t.Run("fills id, timestamp and summary", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)

		rec, err := j.Append(Record{
			Root:    "/data/bin",
			Outcome: OutcomeCommitted,
			Stats:   types.Stats{DupCount: 2, DelCount: 2},
			Deleted: []DeletedRecord{
				{Path: "b.txt", Canonical: "a.txt", Size: 100},
				{Path: "c.txt", Canonical: "a.txt", Size: 100},
			},
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		if !strings.HasPrefix(rec.ID, "run-") {
			t.Errorf("ID = %q, want prefix run-", rec.ID)
		}
		if rec.Timestamp.IsZero() {
			t.Error("Timestamp is zero")
		}
		if rec.Summary.TotalFiles != 2 || rec.Summary.TotalBytes != 200 {
			t.Errorf("Summary = %+v, want 2 files 200 bytes", rec.Summary)
		}

		if _, err := os.Stat(filepath.Join(j.Dir(), rec.ID+".json")); err != nil {
			t.Errorf("record file missing: %v", err)
		}
		if _, err := os.Stat(filepath.Join(j.Dir(), rec.ID+".json.tmp")); !os.IsNotExist(err) {
			t.Error("temp file left behind")
		}
	})

	t.Run("unique ids", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)
		at(j, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

		a, err := j.Append(Record{Outcome: OutcomeDryRun})
		if err != nil {
			t.Fatal(err)
		}
		b, err := j.Append(Record{Outcome: OutcomeDryRun})
		if err != nil {
			t.Fatal(err)
		}
		if a.ID == b.ID {
			t.Errorf("duplicate ID %q", a.ID)
		}
	})
}

func TestJournal_List(t *testing.T) {
	t.Parallel()

	t.Run("newest first with limit", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)
		base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := range 3 {
			at(j, base.Add(time.Duration(i)*time.Hour))
			if _, err := j.Append(Record{Root: string(rune('a' + i))}); err != nil {
				t.Fatal(err)
			}
		}

		all, err := j.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("len = %d, want 3", len(all))
		}
		if all[0].Root != "c" || all[2].Root != "a" {
			t.Errorf("order = %s,%s,%s, want c,b,a", all[0].Root, all[1].Root, all[2].Root)
		}

		limited, err := j.List(2)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 2 {
			t.Errorf("len = %d, want 2", len(limited))
		}
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)
		records, err := j.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("List() = %v, want empty slice", records)
		}
	})

	t.Run("skips corrupt files", func(t *testing.T) {
		t.Parallel()
		j := setupTestJournal(t)
		if _, err := j.Append(Record{Root: "ok"}); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(j.Dir(), "bad.json"), []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		records, err := j.List(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 {
			t.Errorf("len = %d, want 1", len(records))
		}
	})
}

func TestJournal_Get(t *testing.T) {
	t.Parallel()
	j := setupTestJournal(t)

	rec, err := j.Append(Record{Root: "/x", Outcome: OutcomeAborted, Phase: "verify", Error: "mismatch"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := j.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Phase != "verify" || got.Outcome != OutcomeAborted {
		t.Errorf("Get() = %+v", got)
	}

	byPrefix, err := j.Get(rec.ID[:len(rec.ID)-2])
	if err != nil {
		t.Fatalf("Get(prefix) error = %v", err)
	}
	if byPrefix.ID != rec.ID {
		t.Errorf("Get(prefix) ID = %q, want %q", byPrefix.ID, rec.ID)
	}

	if _, err := j.Get("run-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := j.Get(""); err == nil {
		t.Error("Get(\"\") error = nil")
	}
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()
	j := setupTestJournal(t)
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	at(j, now.AddDate(0, 0, -40))
	if _, err := j.Append(Record{Root: "old"}); err != nil {
		t.Fatal(err)
	}
	at(j, now.AddDate(0, 0, -1))
	if _, err := j.Append(Record{Root: "recent"}); err != nil {
		t.Fatal(err)
	}

	at(j, now)
	removed, err := j.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	records, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Root != "recent" {
		t.Errorf("remaining = %+v, want only recent", records)
	}
}

func TestJournal_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	j := setupTestJournal(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Append(Record{Outcome: OutcomeCommitted}); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 10 {
		t.Errorf("len = %d, want 10", len(records))
	}
}
