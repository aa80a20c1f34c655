package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplPebble Implementation = "pebble"
	ImplSQLite Implementation = "sqlite"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet     Feature = 1 << iota // Support for Set operations
	FeatureGet                         // Support for Get operations
	FeatureDelete                      // Support for Delete operations
	FeatureScan                        // Support for ordered prefix scans
	FeatureBatch                       // Support for atomic batches
	FeatureDurable                     // Writes survive a process restart once acknowledged
	FeatureSave                        // Support for Save operations (see Snapshotter)
	FeatureLoad                        // Support for Load operations (see Snapshotter)
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureScan:
		return "Scan"
	case FeatureBatch:
		return "Batch"
	case FeatureDurable:
		return "Durable"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes" yaml:"size_bytes"`
	Keys              int            `json:"keys" yaml:"keys"`
	DbType            Implementation `json:"db_type" yaml:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features" yaml:"supported_features"`
	Metadata          interface{}    `json:"metadata" yaml:"metadata"`
}

// OpType is the kind of a batch operation
type OpType uint8

const (
	OpPut OpType = iota
	OpDelete
)

// Op is a single operation of an atomic batch
type Op struct {
	Type  OpType
	Key   string
	Value []byte // ignored for OpDelete
}

// Put creates a put operation.
func Put(key string, value []byte) Op { return Op{Type: OpPut, Key: key, Value: value} }

// Del creates a delete operation.
func Del(key string) Op { return Op{Type: OpDelete, Key: key} }

// ErrClosed is returned by all operations on a closed database.
var ErrClosed = errors.New("database is closed")

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are compared bytewise. Implementations can vary in their feature support,
// which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry. If the key already exists, the old value is overwritten.
	Set(key string, value []byte) (err error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(key string) (err error)

	// Apply executes all operations atomically: either all of them become visible or none.
	// Operations are applied in order, so a later operation on the same key wins.
	Apply(ops []Op) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is owned by the caller.
	Get(key string) (value []byte, loaded bool, err error)

	// Scan calls fn for every entry whose key starts with prefix, in ascending key order,
	// until fn returns false. Entries are produced lazily. The value passed to fn is
	// owned by the caller. Writes issued from within fn have undefined visibility for
	// the running scan.
	Scan(prefix string, fn func(key string, value []byte) bool) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close flushes pending state and releases the database.
	Close() (err error)
}

// Snapshotter is implemented by databases supporting FeatureSave and FeatureLoad.
type Snapshotter interface {
	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)
	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)
}
