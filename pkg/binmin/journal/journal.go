package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("journal record not found")

// Journal stores run records in a directory.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Journal in dir. The directory is created on first write.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Append assigns rec an ID and timestamp, totals its deletions and
// persists it.
func (j *Journal) Append(rec Record) (*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec.Timestamp = j.now().UTC()
	rec.ID = generateID(rec.Timestamp)

	rec.Summary = Summary{TotalFiles: int64(len(rec.Deleted))}
	for _, d := range rec.Deleted {
		rec.Summary.TotalBytes += d.Size
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if err := j.write(&rec); err != nil {
		return nil, fmt.Errorf("failed to write journal record: %w", err)
	}
	return &rec, nil
}

// write stores rec atomically using a temp file and rename.
func (j *Journal) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := filepath.Join(j.dir, rec.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns records newest first. A limit of 0 or less returns all.
func (j *Journal) List(limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].Timestamp.After(records[b].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record whose ID equals id or, failing that, the single
// record whose ID starts with id.
func (j *Journal) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("record ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.readAll()
	if err != nil {
		return nil, err
	}

	var matches []Record
	for _, rec := range records {
		if rec.ID == id {
			return &rec, nil
		}
		if strings.HasPrefix(rec.ID, id) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous record ID %q matches %d records", id, len(matches))
	}
}

// Cleanup removes records older than retentionDays and returns how many
// were removed.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)

	records, err := j.readAll()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rec := range records {
		if !rec.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, rec.ID+".json")); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

// readAll parses every record file, skipping unreadable ones.
func (j *Journal) readAll() ([]Record, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	records := []Record{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(j.dir, f.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// generateID creates an ID like "run-2026-06-15T10-30-00-1b4e28ba".
func generateID(ts time.Time) string {
	return fmt.Sprintf("run-%s-%s", ts.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
