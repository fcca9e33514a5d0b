// Package store persists a log of query runs to SQLite. Writes are
// asynchronous: runs are queued on a buffered channel and flushed in
// batches, so recording never blocks a query path. The caller must
// blank-import a driver providing "sqlite" (modernc.org/sqlite).
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xul8tr/shadowquery/idgen"
)

// Schema for the query_runs table, applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS query_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	selector TEXT NOT NULL,
	mode TEXT NOT NULL,
	matches INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_runs_ts ON query_runs(timestamp);
CREATE INDEX IF NOT EXISTS idx_query_runs_source ON query_runs(source);
`

// Run is one recorded query execution.
type Run struct {
	RunID      string
	Source     string // page URL, or "inline" for supplied HTML
	Selector   string
	Mode       string // first | all | all-level
	Matches    int
	DurationUs int64
	Error      string
	Timestamp  int64
}

// Store records query runs. Create with Open, release with Close.
type Store struct {
	db      *sql.DB
	ch      chan *Run
	flushCh chan chan struct{}
	done    chan struct{}
	once    sync.Once
	newID   idgen.Generator
}

// Open opens (creating directories and the schema as needed) a query-run
// store at path, with WAL and the usual write-safety pragmas applied.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		ch:      make(chan *Run, 1024),
		flushCh: make(chan chan struct{}),
		done:    make(chan struct{}),
		newID:   idgen.Prefixed("run_", idgen.NanoID(12)),
	}
	go s.flushLoop()
	return s, nil
}

// Record queues a run for async persistence. Non-blocking; drops when the
// buffer is full so a slow disk never backpressures queries.
func (s *Store) Record(r *Run) {
	if r.RunID == "" {
		r.RunID = s.newID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().Unix()
	}
	select {
	case s.ch <- r:
	default:
	}
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT run_id, source, selector, mode, matches, duration_us, COALESCE(error, ''), timestamp
		FROM query_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Source, &r.Selector, &r.Mode, &r.Matches, &r.DurationUs, &r.Error, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flush forces any buffered runs to disk and waits for the write. Callers
// that read back immediately (tests, shutdown paths) use it; must not be
// called after Close.
func (s *Store) Flush() {
	ack := make(chan struct{})
	s.flushCh <- ack
	<-ack
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return s.db.Close()
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Run, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, r)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case ack := <-s.flushCh:
			// Drain anything already queued so the flush covers it.
		drain:
			for {
				select {
				case r, ok := <-s.ch:
					if !ok {
						break drain
					}
					batch = append(batch, r)
				default:
					break drain
				}
			}
			s.flushBatch(batch)
			batch = batch[:0]
			close(ack)
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Run) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("store: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO query_runs (run_id, source, selector, mode, matches, duration_us, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("store: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(r.RunID, r.Source, r.Selector, r.Mode, r.Matches, r.DurationUs, r.Error, r.Timestamp); err != nil {
			slog.Error("store: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("store: commit", "error", err)
	}
}
