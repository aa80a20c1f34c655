package persist

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("persist")

// --------------------------------------------------------------------------
// Tracking state
// --------------------------------------------------------------------------

// trackState is what the persister knows about one stored component record
type trackState struct {
	version uint64 // host version of the value last written (or loaded)
	hash    uint64 // codec fingerprint of the value last written (or loaded)
	dirty   bool   // the last write failed, rewrite regardless of version and hash
	seen    uint64 // cycle in which the component was last observed
}

// entityState holds the persisted components of one bound entity
type entityState struct {
	id    identity.StableID
	comps map[ecs.ComponentTag]*trackState
}

type stagedPut struct {
	key string
	e   ecs.Entity
	tag ecs.ComponentTag
}

// batch is the unit of commit: all operations of one cycle
type batch struct {
	seq     uint64
	ops     []db.Op
	puts    []stagedPut
	deletes int
}

func (b *batch) put(key string, value []byte, e ecs.Entity, tag ecs.ComponentTag) {
	b.ops = append(b.ops, db.Put(key, value))
	b.puts = append(b.puts, stagedPut{key: key, e: e, tag: tag})
}

func (b *batch) del(key string) {
	b.ops = append(b.ops, db.Del(key))
	b.deletes++
}

type batchResult struct {
	batch   *batch
	err     error
	elapsed time.Duration
}

// --------------------------------------------------------------------------
// Persister
// --------------------------------------------------------------------------

// Persister keeps the registered components of a host runtime in sync with a
// store. It is driven by the host loop: Hydrate once at startup, then Sync once
// per update cycle.
//
// Thread-safety: A Persister is not thread-safe. All methods must be called from
// the goroutine that runs the host loop. With PolicyAsync a single background
// goroutine commits batches, it only ever sees encoded bytes.
type Persister struct {
	store    store.IStore
	registry *codec.Registry
	ids      *identity.Map
	opts     options

	tracked        map[ecs.Entity]*entityState
	pendingDeletes map[string]struct{}
	// lastTouch maps every key of an uncommitted batch to the seq of the latest
	// batch writing it. A failed batch only re-arms keys no later batch touched.
	lastTouch map[string]uint64
	seq       uint64
	cycle     uint64

	hydrated bool
	closed   bool
	report   HydrationReport

	worker  *worker
	metrics *persistMetrics
}

// New creates a Persister on an open store. The Persister takes ownership of the
// store and closes it in Close. The identity map is owned by the caller, the
// Persister binds and unbinds entities in it.
func New(s store.IStore, registry *codec.Registry, ids *identity.Map, opts ...Option) *Persister {
	cfg := options{policy: PolicySync, queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.queueSize < 1 {
		cfg.queueSize = DefaultQueueSize
	}

	p := &Persister{
		store:          s,
		registry:       registry,
		ids:            ids,
		opts:           cfg,
		tracked:        make(map[ecs.Entity]*entityState),
		pendingDeletes: make(map[string]struct{}),
		lastTouch:      make(map[string]uint64),
		metrics:        newPersistMetrics(cfg.observer),
	}
	if cfg.policy == PolicyAsync {
		p.worker = newWorker(s, cfg.queueSize)
	}

	log.Debugf("persister created (policy=%s, %d registered types)", cfg.policy, registry.Len())
	return p
}

// Identity returns the identity map the persister binds entities in.
func (p *Persister) Identity() *identity.Map { return p.ids }

// Registry returns the codec registry.
func (p *Persister) Registry() *codec.Registry { return p.registry }

// Store returns the underlying store.
func (p *Persister) Store() store.IStore { return p.store }

// Policy returns the configured write policy.
func (p *Persister) Policy() Policy { return p.opts.policy }

// Hydrated reports whether Hydrate completed successfully.
func (p *Persister) Hydrated() bool { return p.hydrated }

// --------------------------------------------------------------------------
// Commit path (shared by both policies)
// --------------------------------------------------------------------------

// commit hands a batch to the store. With PolicySync the result is applied
// immediately and a failure is returned. With PolicyAsync the batch is queued.
func (p *Persister) commit(b *batch) error {
	if len(b.ops) == 0 {
		return nil
	}
	p.seq++
	b.seq = p.seq
	for _, op := range b.ops {
		p.lastTouch[op.Key] = b.seq
	}

	if p.worker != nil {
		// backpressure: never have more batches outstanding than the queue holds
		var errs *multierror.Error
		for p.worker.outstanding >= p.opts.queueSize {
			errs = multierror.Append(errs, p.applyResult(p.worker.next()))
		}
		p.worker.submit(b)
		return errs.ErrorOrNil()
	}

	start := time.Now()
	err := p.store.Batch(b.ops)
	return p.applyResult(batchResult{batch: b, err: err, elapsed: time.Since(start)})
}

// applyResult updates metrics and, for a failed batch, re-arms its operations:
// puts are marked dirty so the next cycle rewrites them, deletes become pending.
func (p *Persister) applyResult(r batchResult) error {
	b := r.batch
	p.metrics.onCommit(len(b.puts), b.deletes, r.elapsed, r.err)

	latest := func(key string) bool { return p.lastTouch[key] == b.seq }

	if r.err != nil {
		for _, put := range b.puts {
			if !latest(put.key) {
				continue
			}
			if es, ok := p.tracked[put.e]; ok {
				if ts, ok := es.comps[put.tag]; ok {
					ts.dirty = true
				}
			}
		}
		for _, op := range b.ops {
			if op.Type == db.OpDelete && latest(op.Key) {
				p.pendingDeletes[op.Key] = struct{}{}
			}
		}
	}

	for _, op := range b.ops {
		if latest(op.Key) {
			delete(p.lastTouch, op.Key)
		}
	}

	if r.err != nil {
		log.Errorf("commit of batch #%d (%d puts, %d deletes) failed, retrying next cycle: %v",
			b.seq, len(b.puts), b.deletes, r.err)
		return newError(CodeStorage, "", identity.Nil,
			fmt.Sprintf("commit of %d operations failed, retrying next cycle", len(b.ops)), r.err)
	}
	return nil
}

// drainResults applies all results the async worker has produced so far
func (p *Persister) drainResults() error {
	if p.worker == nil {
		return nil
	}
	var errs *multierror.Error
	for {
		r, ok := p.worker.poll()
		if !ok {
			return errs.ErrorOrNil()
		}
		errs = multierror.Append(errs, p.applyResult(r))
	}
}

func (p *Persister) inFlight() int {
	if p.worker == nil {
		return 0
	}
	return p.worker.outstanding
}

// Flush waits until every queued batch is committed and applies the results.
// It is a no-op with PolicySync.
func (p *Persister) Flush() error {
	if p.worker == nil {
		return nil
	}
	var errs *multierror.Error
	for p.worker.outstanding > 0 {
		errs = multierror.Append(errs, p.applyResult(p.worker.next()))
	}
	return errs.ErrorOrNil()
}

// Close flushes outstanding batches, stops the worker and closes the store.
// Changes made since the last Sync are not written.
func (p *Persister) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs *multierror.Error
	errs = multierror.Append(errs, p.Flush())
	if p.worker != nil {
		p.worker.stop()
	}
	if len(p.pendingDeletes) > 0 {
		log.Warningf("closing with %d pending deletes", len(p.pendingDeletes))
	}
	if err := p.store.Close(); err != nil {
		errs = multierror.Append(errs, newError(CodeStorage, "", identity.Nil, "failed to close store", err))
	}
	log.Infof("persister closed (%d entities tracked)", len(p.tracked))
	return errs.ErrorOrNil()
}
