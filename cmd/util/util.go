package util

import (
	"strings"

	"github.com/ValentinKolb/eKV/lib/common"
	"github.com/ValentinKolb/eKV/lib/persist"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the storage and logging flags shared by all commands
func SetupStoreFlags(cmd *cobra.Command) {
	key := "data-dir"
	cmd.PersistentFlags().String(key, persist.DefaultLocation, WrapString("Directory holding the files of the storage engine"))

	key = "engine"
	cmd.PersistentFlags().String(key, "pebble", WrapString("Storage engine to use (pebble, maple, sqlite). A directory must always be opened with the engine that created it"))

	key = "policy"
	cmd.PersistentFlags().String(key, "sync", WrapString("Write policy (sync, async). With async, batches are committed by a background worker and a crash can lose the last queued cycles"))

	key = "queue-size"
	cmd.PersistentFlags().Int(key, persist.DefaultQueueSize, WrapString("Number of batches the async worker buffers before an update cycle blocks"))

	key = "sync-writes"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether every commit is synced to disk before it is acknowledged (pebble, sqlite)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ekv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the shared configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		DataDir:    viper.GetString("data-dir"),
		Engine:     viper.GetString("engine"),
		Policy:     viper.GetString("policy"),
		QueueSize:  viper.GetInt("queue-size"),
		SyncWrites: viper.GetBool("sync-writes"),
		LogLevel:   viper.GetString("log-level"),
	}
}

// Setup binds the flags of cmd, validates the configuration and initializes the
// loggers. It is used as PersistentPreRunE of the root command.
func Setup(cmd *cobra.Command, _ []string) error {
	if err := BindCommandFlags(cmd); err != nil {
		return err
	}
	conf := GetConfig()
	if _, err := conf.PersistConfig(); err != nil {
		return err
	}
	return common.InitLoggers(conf.LogLevel)
}

// OpenStore opens the configured store
func OpenStore() (store.IStore, error) {
	cfg, err := GetConfig().PersistConfig()
	if err != nil {
		return nil, err
	}
	return persist.OpenStore(cfg)
}
