package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered law and case providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		renderProviders(cmd, provider.NewRegistry().List())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func renderProviders(cmd *cobra.Command, infos []provider.Info) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Provider", "Kind", "Source", "Homepage"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Name, string(info.Kind), info.Source.Name, info.Source.Homepage})
	}
	t.Render()
}
