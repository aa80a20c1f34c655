package common

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/persist"
)

// Config holds the settings shared by all ekv commands
type Config struct {
	// DataDir is the storage location of the engine
	DataDir string
	// Engine is one of pebble, maple or sqlite
	Engine string
	// Policy is the write policy (sync or async)
	Policy string
	// QueueSize is the async queue length
	QueueSize int
	// SyncWrites makes every commit durable before it is acknowledged
	SyncWrites bool
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// PersistConfig validates the configuration and converts it to a persist.Config
func (c *Config) PersistConfig() (persist.Config, error) {
	policy, err := persist.ParsePolicy(c.Policy)
	if err != nil {
		return persist.Config{}, err
	}

	engine := db.Implementation(strings.ToLower(c.Engine))
	switch engine {
	case db.ImplPebble, db.ImplMaple, db.ImplSQLite:
	case "":
		engine = db.ImplPebble
	default:
		return persist.Config{}, fmt.Errorf("invalid engine %q, must be one of pebble, maple, sqlite", c.Engine)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return persist.Config{}, err
	}

	return persist.Config{
		Location:   c.DataDir,
		Engine:     engine,
		Policy:     policy,
		QueueSize:  c.QueueSize,
		SyncWrites: c.SyncWrites,
	}, nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Data Dir", c.DataDir)
	addField("Engine", c.Engine)
	addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))

	addSection("Write Path")
	addField("Policy", c.Policy)
	addField("Queue Size", fmt.Sprintf("%d", c.QueueSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
