package persist

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
	"github.com/hashicorp/go-multierror"
)

// --------------------------------------------------------------------------
// Change-tracked write path
// --------------------------------------------------------------------------

// Sync runs one persistence cycle: every registered component that changed since
// it was last written is encoded and upserted, records of despawned or newly
// ignored entities and of removed components are deleted. All operations of the
// cycle are committed as one atomic batch.
//
// Per-entity failures (encoding, missing identity) are logged and returned
// together, they never stop the cycle. A failed commit is returned as
// ErrStorage, its operations are retried in the next cycle.
func (p *Persister) Sync(host ecs.Host) error {
	if p.closed {
		return newError(CodeInvalidOperation, "", identity.Nil, "persister is closed", nil)
	}
	if !p.hydrated {
		return newError(CodeInvalidOperation, "", identity.Nil, "Sync called before Hydrate", nil)
	}

	p.cycle++
	p.metrics.cycles.Inc()

	var errs *multierror.Error
	errs = multierror.Append(errs, p.drainResults())

	b := &batch{}

	// deletes of failed batches go first, a put of the same key in this cycle wins
	if len(p.pendingDeletes) > 0 {
		keys := make([]string, 0, len(p.pendingDeletes))
		for key := range p.pendingDeletes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.del(key)
		}
		clear(p.pendingDeletes)
	}

	for _, tag := range p.registry.Tags() {
		host.Each(tag, func(e ecs.Entity, value any, version uint64) bool {
			if host.Ignored(e) {
				return true
			}
			if err := p.stage(b, e, tag, value, version); err != nil {
				log.Warningf("cycle %d: %v", p.cycle, err)
				errs = multierror.Append(errs, err)
			}
			return true
		})
	}

	p.sweep(b, host)

	if len(b.ops) > 0 {
		log.Debugf("cycle %d: %d puts, %d deletes", p.cycle, len(b.puts), b.deletes)
	}
	errs = multierror.Append(errs, p.commit(b))
	return errs.ErrorOrNil()
}

// stage adds a put for the component if its value changed since the last write.
func (p *Persister) stage(b *batch, e ecs.Entity, tag ecs.ComponentTag, value any, version uint64) error {
	es := p.tracked[e]
	var ts *trackState
	if es != nil {
		ts = es.comps[tag]
		if ts != nil {
			ts.seen = p.cycle
		}
		if id, ok := p.ids.Lookup(e); !ok || id != es.id {
			return newError(CodeMissingMapping, tag, es.id, fmt.Sprintf("entity %s is no longer bound to its stable id", e), nil)
		}
	}

	// fast path: the host did not touch the value (version 0 means untracked)
	if ts != nil && !ts.dirty && version != 0 && ts.version == version {
		return nil
	}

	data, err := p.registry.Encode(tag, value)
	if err != nil {
		id := identity.Nil
		if es != nil {
			id = es.id
		}
		return newError(CodeSerialization, tag, id, fmt.Sprintf("failed to encode component of %s", e), err)
	}
	hash := p.registry.Fingerprint(tag, value, data)

	// touched but equal
	if ts != nil && !ts.dirty && ts.hash == hash {
		ts.version = version
		return nil
	}

	if es == nil {
		id, created := p.ids.Bind(e)
		if created {
			log.Debugf("bound %s to new stable id %s", e, id)
		}
		es = &entityState{id: id, comps: make(map[ecs.ComponentTag]*trackState)}
		p.tracked[e] = es
	}
	if ts == nil {
		ts = &trackState{}
		es.comps[tag] = ts
	}
	*ts = trackState{version: version, hash: hash, seen: p.cycle}

	b.put(ComponentKey(tag, es.id), data, e, tag)
	return nil
}

// sweep stages deletes for everything tracked that was not observed this cycle:
// all records of despawned and ignored entities (which are also unbound) and the
// records of removed components.
func (p *Persister) sweep(b *batch, host ecs.Host) {
	entities := make([]ecs.Entity, 0, len(p.tracked))
	for e := range p.tracked {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Index != entities[j].Index {
			return entities[i].Index < entities[j].Index
		}
		return entities[i].Generation < entities[j].Generation
	})

	for _, e := range entities {
		es := p.tracked[e]

		if !host.Alive(e) || host.Ignored(e) {
			for _, tag := range sortedTags(es.comps) {
				b.del(ComponentKey(tag, es.id))
			}
			delete(p.tracked, e)
			if id, ok := p.ids.Lookup(e); ok && id == es.id {
				p.ids.Unbind(e)
			}
			log.Debugf("released %s (stable id %s, alive=%v)", e, es.id, host.Alive(e))
			continue
		}

		for _, tag := range sortedTags(es.comps) {
			if es.comps[tag].seen != p.cycle {
				b.del(ComponentKey(tag, es.id))
				delete(es.comps, tag)
			}
		}
	}
}

func sortedTags(m map[ecs.ComponentTag]*trackState) []ecs.ComponentTag {
	tags := make([]ecs.ComponentTag, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
