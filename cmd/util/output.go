package util

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats of commands that print data
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// SetupFormatFlag adds the --format flag to a command
func SetupFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", FormatText, WrapString("Output format (text, json, yaml)"))
}

// Render writes v to w in the given format. text renders the human readable form.
func Render(w io.Writer, format string, v any, text func(w io.Writer) error) error {
	switch format {
	case FormatText, "":
		return text(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid format %q, must be one of text, json, yaml", format)
	}
}
