package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	sqlite3 "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// scanPageSize is the number of rows fetched per query during Scan
const scanPageSize = 256

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Core SQLite database structure
// --------------------------------------------------------------------------

// sqliteImpl stores all entries in a single WITHOUT ROWID table
type sqliteImpl struct {
	sdb        *sql.DB
	path       string
	syncWrites bool
	closed     atomic.Bool
}

// DBOptions configures the SQLite database
type DBOptions struct {
	// Path is the database file, created if it does not exist
	Path string

	// SyncWrites sets synchronous=FULL, otherwise NORMAL is used
	SyncWrites bool
}

// NewSQLiteDB creates or opens a SQLite database at the configured path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL or NORMAL synchronous mode depending on SyncWrites
//   - 5-second busy timeout for lock contention
func NewSQLiteDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.Path == "" {
		return nil, errors.New("sqlite: no path configured")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sdb, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)

	synchronous := "NORMAL"
	if opts.SyncWrites {
		synchronous = "FULL"
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = " + synchronous,
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := sdb.Exec(schemaSQL); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	log.Infof("opened sqlite database %s (synchronous=%s)", opts.Path, synchronous)

	return &sqliteImpl{
		sdb:        sdb,
		path:       opts.Path,
		syncWrites: opts.SyncWrites,
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

const (
	upsertSQL = "INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	deleteSQL = "DELETE FROM kv WHERE key = ?"
)

// Set inserts or updates an entry.
func (s *sqliteImpl) Set(key string, value []byte) error {
	return s.Apply([]db.Op{db.Put(key, value)})
}

// Delete removes an entry.
func (s *sqliteImpl) Delete(key string) error {
	return s.Apply([]db.Op{db.Del(key)})
}

// Apply runs all operations in one transaction.
func (s *sqliteImpl) Apply(ops []db.Op) (err error) {
	if s.closed.Load() {
		return db.ErrClosed
	}
	for _, op := range ops {
		if op.Type != db.OpPut && op.Type != db.OpDelete {
			return fmt.Errorf("unknown operation type %d for key %q", op.Type, op.Key)
		}
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.sdb.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, op := range ops {
		switch op.Type {
		case db.OpPut:
			_, err = tx.Exec(upsertSQL, []byte(op.Key), nonNil(op.Value))
		case db.OpDelete:
			_, err = tx.Exec(deleteSQL, []byte(op.Key))
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// nonNil maps nil to an empty value, a nil []byte would be stored as NULL
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the value for a key.
func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, db.ErrClosed
	}

	var value []byte
	err := s.sdb.QueryRow("SELECT value FROM kv WHERE key = ?", []byte(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return nonNil(value), true, nil
}

// Scan queries the prefix range in pages. The rows of a page are fully read before
// fn is called, so the single connection is free for writes issued by fn.
func (s *sqliteImpl) Scan(prefix string, fn func(key string, value []byte) bool) error {
	lower := []byte(prefix)
	upper := util.PrefixEnd(lower)

	for {
		if s.closed.Load() {
			return db.ErrClosed
		}
		page, err := s.readPage(lower, upper)
		if err != nil {
			return err
		}
		for _, e := range page {
			if !fn(e.key, e.value) {
				return nil
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		lower = append([]byte(page[len(page)-1].key), 0)
	}
}

type entry struct {
	key   string
	value []byte
}

// readPage reads up to scanPageSize rows in [lower, upper), upper nil meaning unbounded
func (s *sqliteImpl) readPage(lower, upper []byte) ([]entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if upper == nil {
		rows, err = s.sdb.Query("SELECT key, value FROM kv WHERE key >= ? ORDER BY key LIMIT ?",
			lower, scanPageSize)
	} else {
		rows, err = s.sdb.Query("SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key LIMIT ?",
			lower, upper, scanPageSize)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]entry, 0, scanPageSize)
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		page = append(page, entry{key: string(key), value: nonNil(value)})
	}
	return page, rows.Err()
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplSQLite,
		SupportedFeatures: s.supported(),
	}
	if s.closed.Load() {
		return info
	}

	err := s.sdb.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv").
		Scan(&info.Keys, &info.SizeBytes)
	if err != nil {
		log.Warningf("failed to count keys: %v", err)
	}

	var pageCount, pageSize int64
	var journalMode string
	_ = s.sdb.QueryRow("PRAGMA page_count").Scan(&pageCount)
	_ = s.sdb.QueryRow("PRAGMA page_size").Scan(&pageSize)
	_ = s.sdb.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	libVersion, _, _ := sqlite3.Version()

	info.Metadata = &struct {
		Path          string `json:"path" yaml:"path"`
		FileSize      int64  `json:"file_size_bytes" yaml:"file_size_bytes"`
		JournalMode   string `json:"journal_mode" yaml:"journal_mode"`
		SyncWrites    bool   `json:"sync_writes" yaml:"sync_writes"`
		SQLiteVersion string `json:"sqlite_version" yaml:"sqlite_version"`
	}{
		Path:          s.path,
		FileSize:      pageCount * pageSize,
		JournalMode:   journalMode,
		SyncWrites:    s.syncWrites,
		SQLiteVersion: libVersion,
	}
	return info
}

func (s *sqliteImpl) supported() []db.Feature {
	features := []db.Feature{
		db.FeatureSet, db.FeatureGet, db.FeatureDelete,
		db.FeatureScan, db.FeatureBatch,
	}
	if s.syncWrites {
		features = append(features, db.FeatureDurable)
	}
	return features
}

// SupportsFeature checks if this implementation supports a specific KVDB feature.
func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	var supportedFeatures db.Feature
	for _, f := range s.supported() {
		supportedFeatures |= f
	}
	return supportedFeatures&feature == feature
}

// Close closes the database connection. Further operations return db.ErrClosed.
func (s *sqliteImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.sdb.Close()
}
