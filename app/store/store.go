// Package store implements a filesystem-backed status store for long-running
// jobs: a bounded LRU cache in front of a directory tree where every job
// identifier maps to its own folder holding a single status file. Persistence
// is best effort and can be deferred to a write-behind worker pool; the cache
// always reflects the latest stored status regardless of disk state.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
)

// defaults match the behavior of the store with a zero Config apart from the
// required fields
const (
	DefaultCacheSize   = 50
	DefaultMaxWorkers  = 10
	DefaultIdleTimeout = 60 * time.Second
)

// Status is a job status record. The store treats it as opaque except for the
// identifier of the request that produced it.
type Status interface {
	RequestID() ID
}

// Persistable is implemented by status records eligible for durable storage.
// Records that don't implement it, or return false, are kept in the cache
// only and never written to disk.
type Persistable interface {
	Status
	Persistable() bool
}

// Serializer is the codec turning a status record into bytes and back. The
// on-disk format is owned by the implementation and opaque to the store.
type Serializer interface {
	Write(w io.Writer, st Status) error
	Read(r io.Reader) (Status, error)
}

// Repeater retries a failed function, see go-pkgz/repeater
type Repeater interface {
	Do(ctx context.Context, fun func() error, errs ...error) error
}

// Journal records store operations for diagnostics. Implementations must be
// safe for concurrent use.
type Journal interface {
	Record(op, key, details string)
}

// Config defines everything the store needs. Root and Serializer are
// required, the rest defaults to sane values.
type Config struct {
	Root        string        // storage root directory
	Serializer  Serializer    // status codec
	CacheSize   int           // LRU capacity, default 50
	MaxWorkers  int           // write-behind pool limit, default 10
	IdleTimeout time.Duration // write-behind worker retirement, default 60s
	Blocking    bool          // block saturated async stores instead of dropping the disk write
	Repeater    Repeater      // optional retry for saves
	Journal     Journal       // optional operation journal
}

// Store coordinates the cache, the write-behind pool and the filesystem
// persistence. Safe for concurrent use.
type Store struct {
	root       string
	serializer Serializer
	cache      *statusCache
	exec       *executor
	repeater   Repeater
	journal    Journal
}

// Stats reports store runtime counters.
type Stats struct {
	CacheEntries  int `json:"cache_entries"`
	ActiveWorkers int `json:"active_workers"`
}

// New makes a store rooted at cfg.Root and runs the one-shot reconciliation
// scan before returning. The returned store is ready for concurrent use.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	if cfg.Serializer == nil {
		return nil, fmt.Errorf("serializer is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("can't make store root %s: %w", cfg.Root, err)
	}

	cache, err := newStatusCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("can't make status cache: %w", err)
	}

	res := &Store{
		root:       cfg.Root,
		serializer: cfg.Serializer,
		cache:      cache,
		exec:       newExecutor(cfg.MaxWorkers, cfg.IdleTimeout, cfg.Blocking),
		repeater:   cfg.Repeater,
		journal:    cfg.Journal,
	}

	// a failed scan is logged and tolerated, availability over consistency
	if err := res.repair(); err != nil {
		log.Printf("[ERROR] reconciliation scan failed, continuing without repair, %v", err)
	}
	return res, nil
}

// Get returns the status for the given id or nil if none exists. Lookup hits
// the cache first; on a miss the status is loaded from disk and cached,
// including the negative result, so repeated misses don't touch the disk.
// Get never fails, load errors degrade to nil.
func (s *Store) Get(id ID) Status {
	return s.cache.getOrLoad(id.Key(), func() Status {
		st, err := s.load(id)
		if err != nil {
			log.Printf("[WARN] failed to load status for id [%s], %v", id, err)
			return nil
		}
		return st
	})
}

// Store updates the cache and persists the status synchronously, blocking on
// disk i/o. No-op for nil statuses or statuses without an identifier.
func (s *Store) Store(st Status) { s.store(st, false) }

// StoreAsync updates the cache and defers persistence to the write-behind
// pool, returning as soon as the task is handed off. A Get for the same id
// issued after StoreAsync returns always observes the stored value. Two
// concurrent StoreAsync calls for one id have no ordering guarantee, one of
// the writes persists.
func (s *Store) StoreAsync(st Status) { s.store(st, true) }

func (s *Store) store(st Status, async bool) {
	if st == nil || st.RequestID() == nil {
		return
	}
	id := st.RequestID()
	s.cache.put(id.Key(), st) // cache holds the latest status regardless of disk state

	p, ok := st.(Persistable)
	if !ok || !p.Persistable() {
		return
	}

	if !async {
		s.save(st)
		return
	}
	if !s.exec.submit(func() { s.save(st) }) {
		log.Printf("[WARN] write-behind pool saturated, dropped disk write for id [%s]", id)
	}
}

// Remove deletes the status subtree for the id and drops the cache entry.
// Removing a prefix identifier removes all descendant statuses as well. Disk
// failures are logged, the cache entry goes away regardless. Removing an
// unknown id is a no-op.
func (s *Store) Remove(id ID) {
	existed, err := s.delete(id)
	if err != nil {
		log.Printf("[WARN] failed to delete status folder for id [%s], %v", id, err)
	}
	if existed && err == nil {
		s.record("remove", id.Key(), "")
	}
	s.cache.removePrefix(id.Key()) // descendants share the deleted subtree
}

// Close shuts the write-behind pool down, draining in-flight saves. The store
// must not be used after Close.
func (s *Store) Close() {
	s.exec.close()
}

// Stats returns current cache and pool counters.
func (s *Store) Stats() Stats {
	return Stats{CacheEntries: s.cache.len(), ActiveWorkers: s.exec.active()}
}

// save writes the status to its canonical location, best effort. With a
// repeater configured transient failures are retried.
func (s *Store) save(st Status) {
	write := func() error { return s.write(st) }
	var err error
	if s.repeater != nil {
		err = s.repeater.Do(context.Background(), write)
	} else {
		err = write()
	}
	if err != nil {
		log.Printf("[WARN] failed to save status for id [%s], %v", st.RequestID(), err)
		return
	}
	s.record("save", st.RequestID().Key(), "")
}

func (s *Store) record(op, key, details string) {
	if s.journal == nil {
		return
	}
	s.journal.Record(op, key, details)
}
