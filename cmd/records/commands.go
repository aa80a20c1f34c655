package records

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/eKV/cmd/util"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/spf13/cobra"
)

var (
	// InspectCmd lists stored component records
	InspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "List the stored component records",
		Long: `List the stored component records with their tag, stable id, size and a
decoded preview of the value. Values stored as gob cannot be previewed.

The --filter expression is evaluated per record with the variables tag, id,
size and value, e.g. --filter 'tag == "demo.Position" && value.X > 3'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			filter, _ := cmd.Flags().GetString("filter")
			format, _ := cmd.Flags().GetString("format")
			return withStore(func(s store.IStore) error {
				return inspect(cmd.OutOrStdout(), s, tag, filter, format)
			})
		},
	}

	// StatsCmd prints engine information and per tag record counts
	StatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print engine information and record counts per component tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withStore(func(s store.IStore) error {
				stats, err := collectStats(s)
				if err != nil {
					return err
				}
				return util.Render(cmd.OutOrStdout(), format, stats, func(w io.Writer) error {
					return writeStats(w, stats)
				})
			})
		},
	}

	// PurgeCmd deletes all records of a component tag
	PurgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Delete all records of a component tag",
		Long: `Delete all records and the type meta record of a component tag in one
atomic batch. Use this after an incompatible change of a component type, when
the stored records can no longer be decoded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			return withStore(func(s store.IStore) error {
				n, err := purge(s, tag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d records of %s\n", n, tag)
				return nil
			})
		},
	}
)

func init() {
	InspectCmd.Flags().String("tag", "", util.WrapString("Only list records of this component tag"))
	InspectCmd.Flags().String("filter", "", util.WrapString("Boolean expression selecting records (variables: tag, id, size, value)"))
	util.SetupFormatFlag(InspectCmd)

	util.SetupFormatFlag(StatsCmd)

	PurgeCmd.Flags().String("tag", "", util.WrapString("Component tag to purge"))
	_ = PurgeCmd.MarkFlagRequired("tag")
}

// withStore opens the configured store, runs fn and closes the store
func withStore(fn func(s store.IStore) error) error {
	s, err := util.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("failed to close store: %v", err)
		}
	}()
	return fn(s)
}

func inspect(w io.Writer, s store.IStore, tag, filter, format string) error {
	records, err := collect(s, tag)
	if err != nil {
		return err
	}
	if filter != "" {
		program, err := compileFilter(filter)
		if err != nil {
			return err
		}
		records = apply(program, records)
	}
	if records == nil {
		records = []record{}
	}
	return util.Render(w, format, records, func(w io.Writer) error {
		return writeRecords(w, records)
	})
}

// --------------------------------------------------------------------------
// Text output
// --------------------------------------------------------------------------

func writeRecords(w io.Writer, records []record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}
	for _, r := range records {
		preview := "<" + r.Error + ">"
		if r.Error == "" {
			b, err := json.Marshal(r.Value)
			if err != nil {
				preview = "<" + err.Error() + ">"
			} else {
				preview = string(b)
			}
		}
		if _, err := fmt.Fprintf(w, "%-20s %-36s %6dB  %s\n", r.Tag, r.ID, r.Size, preview); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d records\n", len(records))
	return err
}

func writeStats(w io.Writer, stats storeStats) error {
	features := "none"
	if len(stats.Engine.SupportedFeatures) > 0 {
		names := make([]string, 0, len(stats.Engine.SupportedFeatures))
		for _, f := range stats.Engine.SupportedFeatures {
			names = append(names, f.String())
		}
		features = strings.Join(names, ", ")
	}

	var sb strings.Builder
	sb.WriteString("ENGINE\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Type", stats.Engine.DbType))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Keys", stats.Engine.Keys))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Size (bytes)", stats.Engine.SizeBytes))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Features", features))

	sb.WriteString("\nCOMPONENTS\n")
	if len(stats.Tags) == 0 {
		sb.WriteString("  none\n")
	}
	for _, ts := range stats.Tags {
		sb.WriteString(fmt.Sprintf("  %-20s %6d records %8d bytes  ", ts.Tag, ts.Records, ts.Bytes))
		if ts.Format == "" {
			sb.WriteString("<no meta>\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%s v%d %s\n", ts.Format, ts.SchemaVersion, ts.Type))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
