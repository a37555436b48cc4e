// Package journal keeps a local history of emit runs in a bbolt database
// under the repository's git directory.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/NielsdaWheelz/backpack/internal/errors"
)

var emitsBucket = []byte("emits")

// Status values for Record.Status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Record is one emit attempt.
type Record struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	Emit       string `json:"emit"`
	Base       string `json:"base,omitempty"`
	BaseSource string `json:"base_source,omitempty"`
	MergeBase  string `json:"merge_base,omitempty"`
	SourceTip  string `json:"source_tip,omitempty"`
	EmitTip    string `json:"emit_tip,omitempty"`
	Commits    int    `json:"commits"`
	Dropped    int    `json:"dropped"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code,omitempty"`
	FailedStep string `json:"failed_step,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// Duration returns FinishedAt - StartedAt, or 0 if either is unparseable.
func (r *Record) Duration() time.Duration {
	start, err1 := time.Parse(time.RFC3339Nano, r.StartedAt)
	end, err2 := time.Parse(time.RFC3339Nano, r.FinishedAt)
	if err1 != nil || err2 != nil {
		return 0
	}
	return end.Sub(start)
}

// Journal is an open emit journal.
type Journal struct {
	db *bolt.DB
}

// Open opens (creating if needed) the journal at path.
// Returns E_JOURNAL_FAILED if the database cannot be opened within a second,
// e.g. because another backpack process holds it.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.EJournalFailed, "failed to create journal directory", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EJournalFailed, "failed to open journal", err, map[string]string{
			"path": path,
		})
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(emitsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.EJournalFailed, "failed to create journal buckets", err)
	}

	return &Journal{db: db}, nil
}

// OpenIfExists opens an existing journal read-only, under a shared lock, for
// reporting commands. Returns (nil, nil) when there is no journal yet, so
// those commands never create one.
func OpenIfExists(path string) (*Journal, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EJournalFailed, "failed to open journal", err, map[string]string{
			"path": path,
		})
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores rec under emits/<source>/<run id>.
func (j *Journal) Append(rec *Record) error {
	if rec.RunID == "" || rec.Source == "" {
		return errors.New(errors.EJournalFailed, "journal record needs a run id and source branch")
	}
	err := j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(emitsBucket)
		if err != nil {
			return err
		}
		b, err = b.CreateBucketIfNotExists([]byte(rec.Source))
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return b.Put([]byte(rec.RunID), data)
	})
	if err != nil {
		return errors.Wrap(errors.EJournalFailed, "failed to append journal record", err)
	}
	return nil
}

// List returns records newest first. An empty source lists every branch.
// limit <= 0 means no limit.
func (j *Journal) List(source string, limit int) ([]*Record, error) {
	var records []*Record
	err := j.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(emitsBucket)
		if root == nil {
			return nil
		}
		if source != "" {
			b := root.Bucket([]byte(source))
			if b == nil {
				return nil
			}
			return collect(b, &records, limit)
		}
		return root.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil // not a branch bucket
			}
			return collect(root.Bucket(k), &records, 0)
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.EJournalFailed, "failed to read journal", err)
	}

	// Run ids sort chronologically.
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].RunID > records[b].RunID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// collect appends a bucket's records newest first, stopping at limit (> 0).
func collect(b *bolt.Bucket, out *[]*Record, limit int) error {
	c := b.Cursor()
	n := 0
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			// Skip unreadable entries rather than hiding the whole history.
			continue
		}
		*out = append(*out, &rec)
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return nil
}

// Last returns the newest record for source, or nil if there is none.
func (j *Journal) Last(source string) (*Record, error) {
	records, err := j.List(source, 1)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// LastOK returns the newest successful record for source, or nil.
func (j *Journal) LastOK(source string) (*Record, error) {
	records, err := j.List(source, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Status == StatusOK {
			return r, nil
		}
	}
	return nil, nil
}
