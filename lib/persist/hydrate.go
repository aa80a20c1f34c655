package persist

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
)

// HydrationReport summarizes what Hydrate loaded.
type HydrationReport struct {
	Loaded  map[ecs.ComponentTag]int
	Skipped map[ecs.ComponentTag]int
	// Issues holds one ErrSchemaMismatch per skipped record and per tag whose
	// stored meta differs from its registration.
	Issues []error
	// UnknownTags lists stored tags without a registered codec. Their records are
	// left untouched.
	UnknownTags []ecs.ComponentTag
}

// Total returns the number of loaded and skipped records over all tags.
func (r HydrationReport) Total() (loaded, skipped int) {
	for _, n := range r.Loaded {
		loaded += n
	}
	for _, n := range r.Skipped {
		skipped += n
	}
	return loaded, skipped
}

// LastHydration returns the report of the (single) Hydrate call.
func (p *Persister) LastHydration() HydrationReport { return p.report }

// --------------------------------------------------------------------------
// Hydration
// --------------------------------------------------------------------------

// Hydrate loads all stored records of the registered types into the host. Each
// stored stable id gets a freshly spawned entity (or the entity it is already
// bound to), and the loaded state counts as written, so nothing is rewritten
// until the host changes it.
//
// Records that cannot be parsed or decoded are skipped and reported in
// LastHydration. A failing store is fatal: an ErrStorage is returned and the
// persister stays unhydrated.
func (p *Persister) Hydrate(host ecs.Host) error {
	if p.closed {
		return newError(CodeInvalidOperation, "", identity.Nil, "persister is closed", nil)
	}
	if p.hydrated {
		return newError(CodeInvalidOperation, "", identity.Nil, "Hydrate called twice", nil)
	}

	report := HydrationReport{
		Loaded:  make(map[ecs.ComponentTag]int),
		Skipped: make(map[ecs.ComponentTag]int),
	}

	tags := p.registry.Tags()
	known := make(map[ecs.ComponentTag]bool, len(tags))
	for _, tag := range tags {
		known[tag] = true
	}

	err := p.store.ScanPrefix(metaPrefix, func(key string, _ []byte) bool {
		tag := ecs.ComponentTag(strings.TrimPrefix(key, metaPrefix))
		if !known[tag] {
			report.UnknownTags = append(report.UnknownTags, tag)
			log.Warningf("store contains records of unregistered type %q, leaving them untouched", tag)
		}
		return true
	})
	if err != nil {
		return newError(CodeStorage, "", identity.Nil, "failed to read type meta records", err)
	}

	var metaOps []db.Op
	for _, tag := range tags {
		entry, _ := p.registry.Lookup(tag)
		registered := metaOf(entry)

		stored, found, err := p.readMeta(tag)
		if err != nil {
			return err
		}
		var metaIssue error
		if found {
			if diff := stored.mismatch(registered); diff != "" {
				metaIssue = newError(CodeSchemaMismatch, tag, identity.Nil, "stored records were written with "+diff, nil)
				report.Issues = append(report.Issues, metaIssue)
				log.Warningf("%v, decoding anyway", metaIssue)
			}
		}

		loaded, skipped := 0, 0
		err = p.store.ScanPrefix(ComponentPrefix(tag), func(key string, value []byte) bool {
			attached, issue := p.attach(host, tag, key, value)
			if issue != nil {
				skipped++
				report.Issues = append(report.Issues, issue)
				log.Warningf("skipping record: %v", issue)
				return true
			}
			if attached {
				loaded++
			}
			return true
		})
		if err != nil {
			return newError(CodeStorage, tag, identity.Nil, "failed to scan records", err)
		}

		report.Loaded[tag] = loaded
		report.Skipped[tag] = skipped
		p.metrics.onHydrate(tag, loaded, skipped)

		// keep a mismatching meta record as long as records fail to decode, so the
		// mismatch is reported again on the next start
		if !found || metaIssue == nil || skipped == 0 {
			metaOps = append(metaOps, db.Put(MetaKey(tag), registered.encode()))
		}
	}

	if len(metaOps) > 0 {
		if err := p.store.Batch(metaOps); err != nil {
			return newError(CodeStorage, "", identity.Nil, "failed to write type meta records", err)
		}
	}

	p.report = report
	p.hydrated = true

	loaded, skipped := report.Total()
	log.Infof("hydrated %d records of %d types (%d skipped, %d entities)", loaded, len(tags), skipped, len(p.tracked))
	return nil
}

// readMeta loads the stored meta record of tag
func (p *Persister) readMeta(tag ecs.ComponentTag) (TypeMeta, bool, error) {
	b, found, err := p.store.Get(MetaKey(tag))
	if err != nil {
		return TypeMeta{}, false, newError(CodeStorage, tag, identity.Nil, "failed to read type meta record", err)
	}
	if !found {
		return TypeMeta{}, false, nil
	}
	m, err := DecodeMeta(b)
	if err != nil {
		// unreadable meta is treated like a mismatch
		return TypeMeta{Format: "<invalid>"}, true, nil
	}
	return m, true, nil
}

// attach decodes one record and inserts it into the host. Records bound to an
// entity that carries the ignore marker are not attached.
func (p *Persister) attach(host ecs.Host, tag ecs.ComponentTag, key string, value []byte) (bool, error) {
	_, id, err := ParseComponentKey(key)
	if err != nil {
		return false, newError(CodeSchemaMismatch, tag, identity.Nil, fmt.Sprintf("unparseable record key %q", key), err)
	}

	v, err := p.registry.Decode(tag, value)
	if err != nil {
		return false, newError(CodeSchemaMismatch, tag, id, "failed to decode record", err)
	}

	e, ok := p.ids.Resolve(id)
	if ok && !host.Alive(e) {
		p.ids.Unbind(e)
		delete(p.tracked, e)
		ok = false
	}
	if ok && host.Ignored(e) {
		log.Debugf("not attaching %q to ignored entity %s", key, e)
		return false, nil
	}
	if !ok {
		e = host.Spawn()
		if err := p.ids.BindTo(id, e); err != nil {
			return false, newError(CodeMissingMapping, tag, id, "failed to bind stored id", err)
		}
	}

	version := host.Insert(e, tag, v)

	es := p.tracked[e]
	if es == nil {
		es = &entityState{id: id, comps: make(map[ecs.ComponentTag]*trackState)}
		p.tracked[e] = es
	}
	es.comps[tag] = &trackState{version: version, hash: p.registry.Fingerprint(tag, v, value)}
	return true, nil
}
