package persist

import "fmt"

// Policy decides where the batch of an update cycle is committed
type Policy uint8

const (
	// PolicySync commits the batch inside Sync before it returns.
	PolicySync Policy = iota
	// PolicyAsync hands the batch to a single background worker. Results are
	// applied at the start of the next Sync (or by Flush).
	PolicyAsync
)

func (p Policy) String() string {
	switch p {
	case PolicySync:
		return "sync"
	case PolicyAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ParsePolicy converts "sync" or "async" into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "sync":
		return PolicySync, nil
	case "async":
		return PolicyAsync, nil
	default:
		return PolicySync, fmt.Errorf("invalid write policy %q, must be one of sync, async", s)
	}
}

// DefaultQueueSize is the number of batches the async worker buffers before Sync blocks
const DefaultQueueSize = 16

type options struct {
	policy    Policy
	queueSize int
	observer  Observer
}

// Option customizes a Persister.
type Option func(*options)

// WithPolicy sets the write policy (default PolicySync).
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithQueueSize sets the async queue length. Values below 1 select DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithObserver registers an observer that is notified about commits and
// hydrated records in addition to the built-in metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}
