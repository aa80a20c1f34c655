package records

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/persist"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cli")

// --------------------------------------------------------------------------
// Reading records
// --------------------------------------------------------------------------

// record is the printable form of one stored component record
type record struct {
	Tag   string `json:"tag" yaml:"tag"`
	ID    string `json:"id" yaml:"id"`
	Size  int    `json:"size" yaml:"size"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// readMetas returns the type meta records of all tags, keyed by tag
func readMetas(s store.IStore) (map[string]persist.TypeMeta, error) {
	metas := make(map[string]persist.TypeMeta)
	err := s.ScanPrefix(persist.MetaPrefix(), func(key string, value []byte) bool {
		tag := key[len(persist.MetaPrefix()):]
		m, err := persist.DecodeMeta(value)
		if err != nil {
			log.Warningf("unreadable type meta record of %s: %v", tag, err)
			return true
		}
		metas[tag] = m
		return true
	})
	return metas, err
}

// collect reads all component records, or only those of tag if it is not empty.
// Values are decoded with the format named in the tag's meta record.
func collect(s store.IStore, tag string) ([]record, error) {
	metas, err := readMetas(s)
	if err != nil {
		return nil, err
	}

	prefix := "c/"
	if tag != "" {
		prefix = persist.ComponentPrefix(ecs.ComponentTag(tag))
	}

	var out []record
	err = s.ScanPrefix(prefix, func(key string, value []byte) bool {
		r := record{Size: len(value)}
		t, id, err := persist.ParseComponentKey(key)
		r.Tag = string(t)
		if err != nil {
			r.ID = fmt.Sprintf("%q", key)
			r.Error = err.Error()
			out = append(out, r)
			return true
		}
		r.ID = id.String()

		meta, ok := metas[r.Tag]
		if !ok {
			r.Error = "no type meta record"
		} else if v, err := codec.Preview(meta.Format, value); err != nil {
			r.Error = err.Error()
		} else {
			r.Value = v
		}
		out = append(out, r)
		return true
	})
	return out, err
}

// --------------------------------------------------------------------------
// Filtering
// --------------------------------------------------------------------------

// filterEnv is the environment --filter expressions are evaluated against
type filterEnv struct {
	Tag   string `expr:"tag"`
	ID    string `expr:"id"`
	Size  int    `expr:"size"`
	Value any    `expr:"value"`
}

// compileFilter compiles a boolean filter expression, e.g. `tag == "demo.Position" && value.X > 3`
func compileFilter(filter string) (*vm.Program, error) {
	program, err := expr.Compile(filter, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return program, nil
}

// apply returns the records the program evaluates to true for. Records the
// expression cannot be evaluated on (e.g. undecodable values) do not match.
func apply(program *vm.Program, records []record) []record {
	var out []record
	for _, r := range records {
		res, err := expr.Run(program, filterEnv{Tag: r.Tag, ID: r.ID, Size: r.Size, Value: r.Value})
		if err != nil {
			log.Debugf("filter failed on %s %s: %v", r.Tag, r.ID, err)
			continue
		}
		if match, _ := res.(bool); match {
			out = append(out, r)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// tagStats summarizes the records of one tag
type tagStats struct {
	Tag           string `json:"tag" yaml:"tag"`
	Records       int    `json:"records" yaml:"records"`
	Bytes         int    `json:"bytes" yaml:"bytes"`
	Format        string `json:"format" yaml:"format"`
	SchemaVersion uint32 `json:"schema_version" yaml:"schema_version"`
	Type          string `json:"type" yaml:"type"`
}

// storeStats is the output of the stats command
type storeStats struct {
	Engine db.DatabaseInfo `json:"engine" yaml:"engine"`
	Tags   []tagStats      `json:"tags" yaml:"tags"`
}

// collectStats counts the records and bytes per tag. Tags with records but
// without a meta record are listed with an empty format.
func collectStats(s store.IStore) (storeStats, error) {
	info, err := s.GetDBInfo()
	if err != nil {
		return storeStats{}, err
	}
	metas, err := readMetas(s)
	if err != nil {
		return storeStats{}, err
	}

	byTag := make(map[string]*tagStats)
	get := func(tag string) *tagStats {
		ts, ok := byTag[tag]
		if !ok {
			ts = &tagStats{Tag: tag}
			byTag[tag] = ts
		}
		return ts
	}

	for tag, m := range metas {
		ts := get(tag)
		ts.Format, ts.SchemaVersion, ts.Type = m.Format, m.SchemaVersion, m.Type
	}

	err = s.ScanPrefix("c/", func(key string, value []byte) bool {
		tag, _, _ := persist.ParseComponentKey(key)
		ts := get(string(tag))
		ts.Records++
		ts.Bytes += len(value)
		return true
	})
	if err != nil {
		return storeStats{}, err
	}

	out := storeStats{Engine: info, Tags: make([]tagStats, 0, len(byTag))}
	for _, ts := range byTag {
		out.Tags = append(out.Tags, *ts)
	}
	sort.Slice(out.Tags, func(i, j int) bool { return out.Tags[i].Tag < out.Tags[j].Tag })
	return out, nil
}

// --------------------------------------------------------------------------
// Purging
// --------------------------------------------------------------------------

// purge deletes all records and the meta record of tag in one batch. It returns
// the number of deleted component records.
func purge(s store.IStore, tag string) (int, error) {
	if err := codec.ValidateTag(ecs.ComponentTag(tag)); err != nil {
		return 0, err
	}

	var ops []db.Op
	err := s.ScanPrefix(persist.ComponentPrefix(ecs.ComponentTag(tag)), func(key string, _ []byte) bool {
		ops = append(ops, db.Del(key))
		return true
	})
	if err != nil {
		return 0, err
	}
	n := len(ops)

	ops = append(ops, db.Del(persist.MetaKey(ecs.ComponentTag(tag))))
	if err := s.Batch(ops); err != nil {
		return 0, err
	}
	return n, nil
}
