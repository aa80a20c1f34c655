package persist

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/db/engines/maple"
	"github.com/ValentinKolb/eKV/lib/db/engines/pebbledb"
	"github.com/ValentinKolb/eKV/lib/db/engines/sqlite"
	"github.com/ValentinKolb/eKV/lib/identity"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/ValentinKolb/eKV/lib/store/lstore"
)

// DefaultLocation is the storage location used when none is configured
const DefaultLocation = "./database"

// Config selects and configures the storage engine and the write policy.
type Config struct {
	// Location is the directory holding the engine's files (default ./database)
	Location string
	// Engine is one of pebble (default), maple or sqlite
	Engine db.Implementation
	// Policy is the write policy
	Policy Policy
	// QueueSize is the async queue length (PolicyAsync only)
	QueueSize int
	// SyncWrites makes every commit durable before it is acknowledged (pebble, sqlite)
	SyncWrites bool
}

// DefaultConfig returns the default configuration: pebble in ./database with
// synced writes and the sync write policy.
func DefaultConfig() Config {
	return Config{
		Location:   DefaultLocation,
		Engine:     db.ImplPebble,
		Policy:     PolicySync,
		QueueSize:  DefaultQueueSize,
		SyncWrites: true,
	}
}

func (c Config) withDefaults() Config {
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	if c.Engine == "" {
		c.Engine = db.ImplPebble
	}
	return c
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	c = c.withDefaults()
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Location", c.Location)
	addField("Engine", string(c.Engine))
	addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))

	addSection("Write Path")
	addField("Policy", c.Policy.String())
	if c.Policy == PolicyAsync {
		addField("Queue Size", fmt.Sprintf("%d", c.QueueSize))
	}
	return sb.String()
}

// OpenStore opens the configured engine and wraps it in a local store.
func OpenStore(cfg Config) (store.IStore, error) {
	cfg = cfg.withDefaults()

	var factory store.DBFactory
	switch cfg.Engine {
	case db.ImplPebble:
		factory = func() (db.KVDB, error) {
			return pebbledb.NewPebbleDB(&pebbledb.DBOptions{
				Dir:        cfg.Location,
				SyncWrites: cfg.SyncWrites,
			})
		}
	case db.ImplMaple:
		factory = func() (db.KVDB, error) {
			return maple.NewMapleDB(&maple.DBOptions{
				SnapshotPath: filepath.Join(cfg.Location, "maple.snap"),
			})
		}
	case db.ImplSQLite:
		factory = func() (db.KVDB, error) {
			return sqlite.NewSQLiteDB(&sqlite.DBOptions{
				Path:       filepath.Join(cfg.Location, "ekv.sqlite"),
				SyncWrites: cfg.SyncWrites,
			})
		}
	default:
		return nil, newError(CodeInvalidOperation, "", identity.Nil,
			fmt.Sprintf("unknown engine %q, must be one of pebble, maple, sqlite", cfg.Engine), nil)
	}

	s, err := lstore.NewLocalStore(factory)
	if err != nil {
		return nil, newError(CodeStorage, "", identity.Nil, "failed to open store in "+cfg.Location, err)
	}
	return s, nil
}

// Open opens the configured store and creates a Persister with a fresh identity
// map. The Persister owns the store and closes it in Close.
func Open(cfg Config, registry *codec.Registry, opts ...Option) (*Persister, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("opened %s store in %s", cfg.withDefaults().Engine, cfg.withDefaults().Location)

	all := append([]Option{WithPolicy(cfg.Policy), WithQueueSize(cfg.QueueSize)}, opts...)
	return New(s, registry, identity.NewMap(), all...), nil
}
