// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package store persists sheetops workbooks in BadgerDB. Each workbook is
// stored as one JSON document whose version field drives optimistic
// concurrency, next to an append-only audit trail of the batches applied to
// it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound is returned when no workbook is stored under an id.
	ErrNotFound = errors.New("workbook not found")
	// ErrExists is returned by Create when the id is taken.
	ErrExists = errors.New("workbook already exists")
	// ErrVersionConflict is returned by Save when the stored version is not
	// the expected one.
	ErrVersionConflict = errors.New("workbook version conflict")
)

const (
	workbookPrefix = "wb/"
	auditPrefix    = "audit/"
)

// Config holds configuration for a Store.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string
	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool
	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
	// GCInterval is how often to run value log garbage collection (0 = off).
	GCInterval time.Duration
	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
	// Logger receives store and BadgerDB output. If nil, output is discarded.
	Logger *slog.Logger
}

// DefaultConfig returns defaults for a persistent store.
func DefaultConfig() Config {
	return Config{
		Path:           "data",
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a workbook repository. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens the database described by cfg and starts value log garbage
// collection when configured.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent database")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	return s.db.Close()
}

func workbookKey(id string) []byte {
	return []byte(workbookPrefix + id)
}

func readWorkbook(txn *badger.Txn, id string) (*sheetops.Workbook, error) {
	item, err := txn.Get(workbookKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var wb sheetops.Workbook
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &wb)
	}); err != nil {
		return nil, fmt.Errorf("decode workbook %s: %w", id, err)
	}
	return &wb, nil
}

func writeWorkbook(txn *badger.Txn, id string, wb *sheetops.Workbook) error {
	data, err := json.Marshal(wb)
	if err != nil {
		return fmt.Errorf("encode workbook %s: %w", id, err)
	}
	return txn.Set(workbookKey(id), data)
}

// update runs fn in a read-write transaction. A transaction conflict is
// reported as ErrVersionConflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrVersionConflict, err)
	}
	return err
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// Create stores a new workbook under id.
func (s *Store) Create(ctx context.Context, id string, wb *sheetops.Workbook) error {
	if id == "" || wb == nil {
		return errors.New("store: id and workbook are required")
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(workbookKey(id)); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeWorkbook(txn, id, wb)
	})
}

// Get loads the workbook stored under id.
func (s *Store) Get(ctx context.Context, id string) (*sheetops.Workbook, error) {
	var wb *sheetops.Workbook
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		wb, err = readWorkbook(txn, id)
		return err
	})
	return wb, err
}

// Save replaces the workbook under id if its stored version still equals
// expectedVersion. The saved version is the workbook's own version when that
// is newer, otherwise expectedVersion+1; wb.Version is updated to match.
func (s *Store) Save(ctx context.Context, id string, wb *sheetops.Workbook, expectedVersion int64) error {
	if wb == nil {
		return errors.New("store: nil workbook")
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return saveWorkbook(txn, id, wb, expectedVersion)
	})
}

// Commit saves wb like Save and appends rec to its audit trail in the same
// transaction. rec.Version is set to the saved version.
func (s *Store) Commit(ctx context.Context, id string, wb *sheetops.Workbook, expectedVersion int64, rec *AuditRecord) error {
	if wb == nil || rec == nil {
		return errors.New("store: nil workbook or audit record")
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := saveWorkbook(txn, id, wb, expectedVersion); err != nil {
			return err
		}
		rec.Version = wb.Version
		return writeAudit(txn, id, *rec)
	})
}

func saveWorkbook(txn *badger.Txn, id string, wb *sheetops.Workbook, expectedVersion int64) error {
	current, err := readWorkbook(txn, id)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: %s is at version %d, expected %d",
			ErrVersionConflict, id, current.Version, expectedVersion)
	}
	if wb.Version <= expectedVersion {
		wb.Version = expectedVersion + 1
	}
	return writeWorkbook(txn, id, wb)
}

// Delete removes a workbook and its audit trail.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(workbookKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}
		if err := txn.Delete(workbookKey(id)); err != nil {
			return err
		}
		keys, err := collectKeys(txn, auditKeyPrefix(id))
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the ids of all stored workbooks in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		keys, err := collectKeys(txn, []byte(workbookPrefix))
		if err != nil {
			return err
		}
		for _, key := range keys {
			ids = append(ids, string(key[len(workbookPrefix):]))
		}
		return nil
	})
	return ids, err
}

func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
