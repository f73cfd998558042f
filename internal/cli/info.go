package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/sink"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show API info of the configured OLDP instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := sink.NewAPIClient(loadConfig().API)
		if err != nil {
			return configError(err)
		}

		var data any
		if err := client.Get(cmd.Context(), "/api/?format=json", &data); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
