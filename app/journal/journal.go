// Package journal keeps an append-only log of store operations (saves,
// removals, reconciliation moves) in SQLite for diagnostics and the web API.
// The store never depends on the journal succeeding, recording is best
// effort.
package journal

import (
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// Entry is a single journaled store operation.
type Entry struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Key       string    `json:"key"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal is a SQLite-backed operation log, safe for concurrent use.
type Journal struct {
	db *sqlx.DB
}

// New opens, and if needed creates, the journal database.
func New(dbPath string) (*Journal, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	// WAL keeps concurrent writers from blocking readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		key TEXT NOT NULL,
		details TEXT DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operations_created_at ON operations(created_at)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends an operation. Failures are logged and swallowed, the caller
// is never blocked on the journal.
func (j *Journal) Record(op, key, details string) {
	_, err := j.db.Exec("INSERT INTO operations (op, key, details, created_at) VALUES (?, ?, ?, ?)",
		op, key, details, time.Now().Unix())
	if err != nil {
		log.Printf("[WARN] failed to journal %s for key %q, %v", op, key, err)
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []struct {
		ID        int64  `db:"id"`
		Op        string `db:"op"`
		Key       string `db:"key"`
		Details   string `db:"details"`
		CreatedAt int64  `db:"created_at"`
	}
	if err := j.db.Select(&rows, "SELECT id, op, key, details, created_at FROM operations ORDER BY id DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}

	res := make([]Entry, 0, len(rows))
	for _, r := range rows {
		res = append(res, Entry{ID: r.ID, Op: r.Op, Key: r.Key, Details: r.Details,
			CreatedAt: time.Unix(r.CreatedAt, 0)})
	}
	return res, nil
}

// Prune drops entries older than the given age. Returns the number removed.
func (j *Journal) Prune(olderThan time.Duration) (int64, error) {
	res, err := j.db.Exec("DELETE FROM operations WHERE created_at < ?", time.Now().Add(-olderThan).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }
