package lstore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance on the database returned by factory.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) (store.IStore, error) {
	kv, err := factory()
	if err != nil {
		return nil, store.WrapError(store.RetCStorageError, "failed to open database", err)
	}
	return Wrap(kv), nil
}

// Wrap creates a local store on an already opened database.
func Wrap(kv db.KVDB) store.IStore {
	info := kv.GetInfo()
	log.Debugf("local store on %s engine (%d keys)", info.DbType, info.Keys)
	return &storeImpl{db: kv}
}

// incAndGetIndex increments the index and returns the new value.
// It is called once per committed write operation.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// wrap converts an engine error to a *store.Error
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrClosed) {
		return store.WrapError(store.RetCClosed, op+" on closed store", err)
	}
	return store.WrapError(store.RetCStorageError, op+" failed", err)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	if err := s.db.Set(key, value); err != nil {
		return wrap("Put", err)
	}
	s.incAndGetIndex()
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if err := s.db.Delete(key); err != nil {
		return wrap("Delete", err)
	}
	s.incAndGetIndex()
	return nil
}

func (s *storeImpl) Batch(ops []db.Op) error {
	if !s.db.SupportsFeature(db.FeatureBatch) {
		return store.NewError(store.RetCUnsupportedOperation, "Batch operation is not supported")
	}
	for _, op := range ops {
		if op.Type != db.OpPut && op.Type != db.OpDelete {
			return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown operation type %d", op.Type))
		}
	}
	if len(ops) == 0 {
		return nil
	}
	if err := s.db.Apply(ops); err != nil {
		return wrap("Batch", err)
	}
	idx := s.incAndGetIndex()
	log.Debugf("committed batch #%d with %d operations", idx, len(ops))
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok, err := s.db.Get(key)
	if err != nil {
		return nil, false, wrap("Get", err)
	}
	return val, ok, nil
}

func (s *storeImpl) ScanPrefix(prefix string, fn func(key string, value []byte) bool) error {
	if !s.db.SupportsFeature(db.FeatureScan) {
		return store.NewError(store.RetCUnsupportedOperation, "ScanPrefix operation is not supported")
	}
	return wrap("ScanPrefix", s.db.Scan(prefix, fn))
}

func (s *storeImpl) WriteIndex() uint64 {
	return s.index.Load()
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	return wrap("Close", s.db.Close())
}
