package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/eKV/cmd/demo"
	"github.com/ValentinKolb/eKV/cmd/records"
	"github.com/ValentinKolb/eKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ekv",
		Short: "entity-component persistence engine",
		Long: fmt.Sprintf(`eKV (v%s)

Keeps the components of an entity/component runtime durably in sync with an
embedded key-value store (pebble, maple or sqlite) and restores them on startup.

The configuration can be set via command line flags or environment variables.
The format of the environment variables is EKV_<flag> (e.g. EKV_DATA_DIR=/var/lib/ekv).`, Version),
		PersistentPreRunE: util.Setup,
		SilenceUsage:      true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of eKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eKV v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(records.InspectCmd)
	RootCmd.AddCommand(records.StatsCmd)
	RootCmd.AddCommand(records.PurgeCmd)
	RootCmd.AddCommand(demo.DemoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
