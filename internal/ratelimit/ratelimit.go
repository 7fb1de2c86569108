package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-memdb"
)

const windowTable = "window"

// Result describes the state of a client's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Store counts hits per client identity over fixed windows.
type Store interface {
	Hit(key string) (Result, error)
}

// window is one client's current fixed window. Stored rows are never
// mutated; a hit inserts a replacement.
type window struct {
	Key   string
	Start time.Time
	Count int
}

// MemStore is a process-wide fixed window counter backed by go-memdb.
type MemStore struct {
	db     *memdb.MemDB
	limit  int
	period time.Duration
	now    func() time.Time
}

func NewMemStore(limit int, period time.Duration) (*MemStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			windowTable: {
				Name: windowTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: create store: %w", err)
	}
	return &MemStore{db: db, limit: limit, period: period, now: time.Now}, nil
}

// Hit records a request for key and reports whether it is within the limit.
// The window starts at the first hit and resets a full period later.
func (s *MemStore) Hit(key string) (Result, error) {
	now := s.now()

	txn := s.db.Txn(true)
	defer txn.Abort()

	w := window{Key: key, Start: now}
	raw, err := txn.First(windowTable, "id", key)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: lookup: %w", err)
	}
	if raw != nil {
		if cur := raw.(*window); now.Before(cur.Start.Add(s.period)) {
			w = *cur
		}
	}
	w.Count++

	if err := txn.Insert(windowTable, &w); err != nil {
		return Result{}, fmt.Errorf("ratelimit: record hit: %w", err)
	}
	txn.Commit()

	return Result{
		Allowed:   w.Count <= s.limit,
		Limit:     s.limit,
		Remaining: max(s.limit-w.Count, 0),
		Reset:     w.Start.Add(s.period),
	}, nil
}

// Sweep deletes windows that have expired and returns how many were removed.
func (s *MemStore) Sweep() (int, error) {
	now := s.now()

	txn := s.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(windowTable, "id")
	if err != nil {
		return 0, fmt.Errorf("ratelimit: scan: %w", err)
	}

	var expired []*window
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if w := obj.(*window); !now.Before(w.Start.Add(s.period)) {
			expired = append(expired, w)
		}
	}
	for _, w := range expired {
		if err := txn.Delete(windowTable, w); err != nil {
			return 0, fmt.Errorf("ratelimit: delete: %w", err)
		}
	}

	txn.Commit()
	return len(expired), nil
}

// RunSweeper sweeps expired windows every period until ctx is cancelled.
func (s *MemStore) RunSweeper(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep()
			if err != nil {
				logger.Error("ratelimit: sweep failed", "error", err)
				continue
			}
			logger.Debug("ratelimit: swept expired windows", "removed", n)
		}
	}
}
