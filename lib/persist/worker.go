package persist

import (
	"time"

	"github.com/ValentinKolb/eKV/lib/store"
)

// worker commits batches on a background goroutine in submission order.
// Only the loop goroutine calls its methods, the goroutine itself only touches
// jobs, results and the store.
type worker struct {
	store   store.IStore
	jobs    chan *batch
	results chan batchResult
	done    chan struct{}

	// outstanding counts submitted batches whose result was not yet received.
	// It never exceeds the queue size, so the worker never blocks on results.
	outstanding int
}

func newWorker(s store.IStore, queueSize int) *worker {
	w := &worker{
		store:   s,
		jobs:    make(chan *batch, queueSize),
		results: make(chan batchResult, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	for b := range w.jobs {
		start := time.Now()
		err := w.store.Batch(b.ops)
		w.results <- batchResult{batch: b, err: err, elapsed: time.Since(start)}
	}
}

func (w *worker) submit(b *batch) {
	w.outstanding++
	w.jobs <- b
}

// next blocks until the next result is available
func (w *worker) next() batchResult {
	r := <-w.results
	w.outstanding--
	return r
}

// poll returns a result if one is available
func (w *worker) poll() (batchResult, bool) {
	select {
	case r := <-w.results:
		w.outstanding--
		return r, true
	default:
		return batchResult{}, false
	}
}

// stop lets the goroutine finish. All results must have been received before.
func (w *worker) stop() {
	close(w.jobs)
	<-w.done
}
