package pebbledb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/db/util"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

// scanPageSize is the number of entries read per iterator during Scan
const scanPageSize = 256

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Core Pebble database structure
// --------------------------------------------------------------------------

// pebbleImpl adapts a pebble LSM tree to the KVDB interface
type pebbleImpl struct {
	// mu guards the handle against Close: operations hold it shared, Close exclusively
	mu     sync.RWMutex
	pdb    *pebble.DB
	closed bool

	dir       string
	writeOpts *pebble.WriteOptions
}

// DBOptions configures the pebble database
type DBOptions struct {
	// Dir is the directory holding the LSM files
	Dir string

	// FS overrides the file system (nil = the OS file system). vfs.NewMem() gives a
	// purely in-memory database, useful in tests.
	FS vfs.FS

	// SyncWrites makes every acknowledged write durable by syncing the WAL.
	SyncWrites bool
}

// DefaultOptions returns the default pebble options
func DefaultOptions(dir string) *DBOptions {
	return &DBOptions{
		Dir:        dir,
		SyncWrites: true,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewPebbleDB opens (or creates) a pebble database in the configured directory.
//
// Thread-safety: Only one instance may use a directory at a time, pebble enforces
// this with a lock file.
func NewPebbleDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.Dir == "" {
		return nil, errors.New("pebble: no directory configured")
	}

	pebbleOpts := &pebble.Options{
		Logger: pebbleLogger{},
	}
	if opts.FS != nil {
		pebbleOpts.FS = opts.FS
	}

	pdb, err := pebble.Open(opts.Dir, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble in %s: %w", opts.Dir, err)
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}

	log.Infof("opened pebble database in %s (sync writes: %v)", opts.Dir, opts.SyncWrites)

	return &pebbleImpl{
		pdb:       pdb,
		dir:       opts.Dir,
		writeOpts: writeOpts,
	}, nil
}

// pebbleLogger routes pebble's own log output into the "db" logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}

// acquire returns the open handle while holding the shared lock. release must be
// called afterwards, unless an error was returned.
func (p *pebbleImpl) acquire() (*pebble.DB, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, db.ErrClosed
	}
	return p.pdb, nil
}

func (p *pebbleImpl) release() {
	p.mu.RUnlock()
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (p *pebbleImpl) Set(key string, value []byte) error {
	return p.Apply([]db.Op{db.Put(key, value)})
}

// Delete removes an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (p *pebbleImpl) Delete(key string) error {
	return p.Apply([]db.Op{db.Del(key)})
}

// Apply writes all operations as a single pebble batch.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (p *pebbleImpl) Apply(ops []db.Op) error {
	pdb, err := p.acquire()
	if err != nil {
		return err
	}
	defer p.release()

	batch := pdb.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case db.OpPut:
			err = batch.Set([]byte(op.Key), op.Value, nil)
		case db.OpDelete:
			err = batch.Delete([]byte(op.Key), nil)
		default:
			return fmt.Errorf("unknown operation type %d for key %q", op.Type, op.Key)
		}
		if err != nil {
			return err
		}
	}
	if batch.Empty() {
		return nil
	}

	return batch.Commit(p.writeOpts)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (p *pebbleImpl) Get(key string) ([]byte, bool, error) {
	pdb, err := p.acquire()
	if err != nil {
		return nil, false, err
	}
	defer p.release()

	value, closer, err := pdb.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	// the returned slice is only valid until closer is closed
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Scan iterates the prefix range page by page. Each page is read with a fresh
// iterator, so no lock or iterator is held while fn runs.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (p *pebbleImpl) Scan(prefix string, fn func(key string, value []byte) bool) error {
	lower := []byte(prefix)
	upper := util.PrefixEnd(lower)

	for {
		page, err := p.readPage(lower, upper)
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
		// continue right after the last key of this page
		lower = append([]byte(page[len(page)-1].key), 0)
	}
}

type entry struct {
	key   string
	value []byte
}

// readPage reads up to scanPageSize entries in [lower, upper).
func (p *pebbleImpl) readPage(lower, upper []byte) ([]entry, error) {
	pdb, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer p.release()

	iter := pdb.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})

	page := make([]entry, 0, scanPageSize)
	for valid := iter.First(); valid && len(page) < scanPageSize; valid = iter.Next() {
		page = append(page, entry{
			key:   string(iter.Key()),
			value: util.CopyBytes(nonNil(iter.Value())),
		})
	}

	if err := iter.Error(); err != nil {
		iter.Close()
		return nil, err
	}
	return page, iter.Close()
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database. Counting keys requires a full scan.
func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplPebble,
		SupportedFeatures: p.supported(),
	}

	pdb, err := p.acquire()
	if err != nil {
		return info
	}
	defer p.release()

	iter := pdb.NewIter(nil)
	for valid := iter.First(); valid; valid = iter.Next() {
		info.Keys++
		info.SizeBytes += len(iter.Key()) + len(iter.Value())
	}
	if err := iter.Close(); err != nil {
		log.Warningf("failed to count keys: %v", err)
	}

	m := pdb.Metrics()
	info.Metadata = &struct {
		Dir          string `json:"dir" yaml:"dir"`
		DiskSpace    uint64 `json:"disk_space_bytes" yaml:"disk_space_bytes"`
		MemTableSize uint64 `json:"memtable_size_bytes" yaml:"memtable_size_bytes"`
		Compactions  int64  `json:"compactions" yaml:"compactions"`
		Flushes      int64  `json:"flushes" yaml:"flushes"`
		SyncWrites   bool   `json:"sync_writes" yaml:"sync_writes"`
	}{
		Dir:          p.dir,
		DiskSpace:    m.DiskSpaceUsage(),
		MemTableSize: m.MemTable.Size,
		Compactions:  m.Compact.Count,
		Flushes:      m.Flush.Count,
		SyncWrites:   p.writeOpts.Sync,
	}
	return info
}

func (p *pebbleImpl) supported() []db.Feature {
	features := []db.Feature{
		db.FeatureSet, db.FeatureGet, db.FeatureDelete,
		db.FeatureScan, db.FeatureBatch,
	}
	if p.writeOpts.Sync {
		features = append(features, db.FeatureDurable)
	}
	return features
}

// SupportsFeature checks if this implementation supports a specific KVDB feature.
// FeatureDurable is only supported with synced writes.
func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	var supportedFeatures db.Feature
	for _, f := range p.supported() {
		supportedFeatures |= f
	}
	return supportedFeatures&feature == feature
}

// Close flushes and closes the database. Further operations return db.ErrClosed.
func (p *pebbleImpl) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if !p.writeOpts.Sync {
		if err := p.pdb.Flush(); err != nil {
			log.Errorf("failed to flush pebble before close: %v", err)
		}
	}
	return p.pdb.Close()
}
