package maple

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Snapshot format version
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	seed   uint64
	shards []*xsync.MapOf[string, []byte]

	// mu makes batches atomic: writers hold it exclusively, readers shared
	mu sync.RWMutex

	snapshotPath string
	closed       atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)

	// SnapshotPath is the file the state is loaded from on open and written to on Close.
	// Empty means purely in-memory.
	SnapshotPath string
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional).
// If a snapshot path is configured and the file exists, its content is loaded.
//
// Thread-safety: This function is not thread-safe and should only be called once
// per snapshot file.
func NewMapleDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	m := &mapleImpl{
		seed:         util.GenerateSeed(),
		shards:       newShards(numShards),
		snapshotPath: opts.SnapshotPath,
	}

	if m.snapshotPath != "" {
		f, err := os.Open(m.snapshotPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// first start
		case err != nil:
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		default:
			defer f.Close()
			if err := m.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load snapshot %s: %w", m.snapshotPath, err)
			}
		}
	}

	return m, nil
}

func newShards(n int) []*xsync.MapOf[string, []byte] {
	shards := make([]*xsync.MapOf[string, []byte], n)
	for i := range shards {
		shards[i] = xsync.NewMapOf[string, []byte]()
	}
	return shards
}

// shard returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shard(key string) *xsync.MapOf[string, []byte] {
	// Shift right by 7 bits to use higher-quality bits for distribution
	h := util.HashString(key, maple.seed) >> 7
	return maple.shards[h%uint64(len(maple.shards))]
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry. The value is copied.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte) error {
	return maple.Apply([]db.Op{db.Put(key, value)})
}

// Delete removes an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) error {
	return maple.Apply([]db.Op{db.Del(key)})
}

// Apply executes all operations while holding the write lock, so readers either see
// none or all of them.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Apply(ops []db.Op) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	// validate first so that a bad batch leaves no partial state
	for _, op := range ops {
		if op.Type != db.OpPut && op.Type != db.OpDelete {
			return fmt.Errorf("unknown operation type %d for key %q", op.Type, op.Key)
		}
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	for _, op := range ops {
		switch op.Type {
		case db.OpPut:
			// Copy value to prevent memory corruption
			maple.shard(op.Key).Store(op.Key, util.CopyBytes(nonNil(op.Value)))
		case db.OpDelete:
			maple.shard(op.Key).Delete(op.Key)
		}
	}
	return nil
}

// nonNil maps nil to an empty value so that Get can tell "empty" from "missing".
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool, error) {
	if maple.closed.Load() {
		return nil, false, db.ErrClosed
	}
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	v, ok := maple.shard(key).Load(key)
	if !ok {
		return nil, false, nil
	}
	return util.CopyBytes(v), true, nil
}

// Scan collects the matching keys of all shards, sorts them and then loads the values
// one by one. The lock is not held while fn runs, so fn may write to the database.
// Entries deleted after the keys were collected are skipped.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Scan(prefix string, fn func(key string, value []byte) bool) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.RLock()
	var keys []string
	for _, shard := range maple.shards {
		shard.Range(func(key string, _ []byte) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
	}
	maple.mu.RUnlock()

	sort.Strings(keys)

	for _, key := range keys {
		value, ok, err := maple.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(key, value) {
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of the database to the writer.
//
// Thread-safety: Writers are blocked while the snapshot is collected, the actual
// encoding happens without holding the lock.
func (maple *mapleImpl) Save(w io.Writer) error {
	type entryToSave struct {
		key   string
		value []byte
	}

	maple.mu.RLock()
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Range(func(key string, value []byte) bool {
			// values are never mutated in place, no copy needed
			entries = append(entries, entryToSave{key, value})
			return true
		})
	}
	maple.mu.RUnlock()

	// deterministic output
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database content with a snapshot read from r. On error the
// previous content is kept.
//
// Thread-safety: This method is thread-safe, concurrent operations see either
// the old or the new state.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// build into fresh shards, swap only on success
	shards := newShards(len(maple.shards))
	target := &mapleImpl{seed: maple.seed, shards: shards}

	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		target.shard(string(key)).Store(string(key), value)
	}

	maple.mu.Lock()
	maple.shards = shards
	maple.mu.Unlock()
	return nil
}

// saveSnapshot writes the snapshot to a temporary file and renames it over the
// configured path, so a crash never leaves a truncated snapshot behind.
func (maple *mapleImpl) saveSnapshot() error {
	dir := filepath.Dir(maple.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".maple-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := maple.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), maple.snapshotPath)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	keys := 0
	sizeBytes := 0
	shardSizes := make([]float64, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Range(func(key string, value []byte) bool {
			keys++
			sizeBytes += len(key) + len(value)
			return true
		})
		shardSizes[i] = float64(shard.Size())
	}
	maple.mu.RUnlock()

	meta := &struct {
		ShardCount        int                    `json:"shard_count" yaml:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution" yaml:"shard_distribution"`
		SnapshotPath      string                 `json:"snapshot_path" yaml:"snapshot_path"`
	}{
		ShardCount:        len(shardSizes),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		SnapshotPath:      maple.snapshotPath,
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Keys:      keys,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete,
			db.FeatureScan, db.FeatureBatch,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature.
// Writes are only durable at Close (and only with a snapshot path), so FeatureDurable
// is not advertised.
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureScan |
		db.FeatureBatch |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close writes the snapshot (if configured). Further operations return db.ErrClosed.
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}
	if maple.snapshotPath == "" {
		return nil
	}
	return maple.saveSnapshot()
}
