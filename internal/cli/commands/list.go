package commands

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/extdev/internal/extension"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered extensions",
		Long:  `List every extension unit found under the extensions directory.`,
		Example: `  # List extensions as a table
  extdev list

  # List extensions as JSON
  extdev list --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd)
			logger := getLogger(cmd)

			units, err := discoverUnits(cfg, logger)
			if err != nil {
				return err
			}

			if asJSON {
				return listJSON(cmd, units)
			}
			listTable(cmd, units)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func listTable(cmd *cobra.Command, units []*extension.Unit) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"HANDLE", "TYPE", "DRAFTABLE", "ENTRY", "WATCH TARGETS"})

	for _, unit := range units {
		var kinds []string
		for _, kind := range extension.Kinds() {
			if len(unit.WatchPaths(kind)) > 0 {
				kinds = append(kinds, string(kind))
			}
		}
		draftable := "no"
		if unit.Draftable() {
			draftable = "yes"
		}
		t.AppendRow(table.Row{unit.Handle, string(unit.Type), draftable, unit.Entry, strings.Join(kinds, ", ")})
	}
	t.Render()
}

// unitJSON is the JSON projection of a unit for scripting.
type unitJSON struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Type      string `json:"type"`
	Directory string `json:"directory"`
	Entry     string `json:"entry,omitempty"`
	Draftable bool   `json:"draftable"`
}

func listJSON(cmd *cobra.Command, units []*extension.Unit) error {
	out := make([]unitJSON, 0, len(units))
	for _, unit := range units {
		out = append(out, unitJSON{
			ID:        unit.ID,
			Handle:    unit.Handle,
			Type:      string(unit.Type),
			Directory: unit.Directory,
			Entry:     unit.Entry,
			Draftable: unit.Draftable(),
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
