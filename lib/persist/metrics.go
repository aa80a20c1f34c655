package persist

import (
	"io"
	"time"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Observer is notified about the work of a Persister. All methods are called
// from the goroutine that calls Hydrate, Sync and Flush.
type Observer interface {
	// OnCommit is called once per committed (or failed) batch.
	OnCommit(puts, deletes int, elapsed time.Duration, err error)
	// OnHydrate is called once per tag after its records were loaded.
	OnHydrate(tag ecs.ComponentTag, loaded, skipped int)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnCommit(int, int, time.Duration, error) {}
func (NoopObserver) OnHydrate(ecs.ComponentTag, int, int)    {}

// Stats is a summary of the work done by a Persister
type Stats struct {
	Cycles         uint64        `json:"cycles" yaml:"cycles"`
	Writes         uint64        `json:"writes" yaml:"writes"`
	Deletes        uint64        `json:"deletes" yaml:"deletes"`
	WriteErrors    uint64        `json:"write_errors" yaml:"write_errors"`
	Hydrated       uint64        `json:"hydrated" yaml:"hydrated"`
	HydrateSkipped uint64        `json:"hydrate_skipped" yaml:"hydrate_skipped"`
	Commits        int64         `json:"commits" yaml:"commits"`
	CommitMean     time.Duration `json:"commit_mean" yaml:"commit_mean"`
	CommitP99      time.Duration `json:"commit_p99" yaml:"commit_p99"`
	Tracked        int           `json:"tracked_entities" yaml:"tracked_entities"`
	PendingDeletes int           `json:"pending_deletes" yaml:"pending_deletes"`
	InFlight       int           `json:"in_flight_batches" yaml:"in_flight_batches"`
}

// persistMetrics holds the counters of one Persister. Each Persister has its own
// metrics.Set so that several instances (and tests) do not share counters.
type persistMetrics struct {
	set *metrics.Set

	cycles      *metrics.Counter
	writes      *metrics.Counter
	deletes     *metrics.Counter
	writeErrors *metrics.Counter
	hydrated    *metrics.Counter
	skipped     *metrics.Counter

	commit gometrics.Timer

	observer Observer
}

func newPersistMetrics(observer Observer) *persistMetrics {
	if observer == nil {
		observer = NoopObserver{}
	}
	set := metrics.NewSet()
	return &persistMetrics{
		set:         set,
		cycles:      set.NewCounter("ekv_cycles_total"),
		writes:      set.NewCounter("ekv_writes_total"),
		deletes:     set.NewCounter("ekv_deletes_total"),
		writeErrors: set.NewCounter("ekv_write_errors_total"),
		hydrated:    set.NewCounter("ekv_hydrated_total"),
		skipped:     set.NewCounter("ekv_hydrate_skipped_total"),
		commit:      gometrics.NewTimer(),
		observer:    observer,
	}
}

func (m *persistMetrics) onCommit(puts, deletes int, elapsed time.Duration, err error) {
	m.commit.Update(elapsed)
	if err != nil {
		m.writeErrors.Inc()
	} else {
		m.writes.Add(puts)
		m.deletes.Add(deletes)
	}
	m.observer.OnCommit(puts, deletes, elapsed, err)
}

func (m *persistMetrics) onHydrate(tag ecs.ComponentTag, loaded, skipped int) {
	m.hydrated.Add(loaded)
	m.skipped.Add(skipped)
	m.observer.OnHydrate(tag, loaded, skipped)
}

// WritePrometheus writes the counters of the Persister in Prometheus text format.
func (p *Persister) WritePrometheus(w io.Writer) {
	p.metrics.set.WritePrometheus(w)
}

// Stats returns a summary of the work done so far.
func (p *Persister) Stats() Stats {
	m := p.metrics
	return Stats{
		Cycles:         m.cycles.Get(),
		Writes:         m.writes.Get(),
		Deletes:        m.deletes.Get(),
		WriteErrors:    m.writeErrors.Get(),
		Hydrated:       m.hydrated.Get(),
		HydrateSkipped: m.skipped.Get(),
		Commits:        m.commit.Count(),
		CommitMean:     time.Duration(m.commit.Mean()),
		CommitP99:      time.Duration(m.commit.Percentile(0.99)),
		Tracked:        len(p.tracked),
		PendingDeletes: len(p.pendingDeletes),
		InFlight:       p.inFlight(),
	}
}
