package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/results"
)

var (
	staleHours int
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status dashboard of all providers",
	Long: `Read the result files of the results directory and show the last run of
every provider. Providers that never ran or whose last run is older than
--stale-hours are marked stale.

Exits with status 1 unless every provider ran recently without a fatal error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Results.Dir == "" {
			return configError(fmt.Errorf("--results-dir or OLDP_RESULTS_DIR is required"))
		}
		hours := cfg.Results.StaleHours
		if cmd.Flags().Changed("stale-hours") {
			hours = staleHours
		}

		all, err := results.ReadAll(cfg.Results.Dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		now := time.Now().UTC()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if all == nil {
				all = []model.RunResult{}
			}
			if err := enc.Encode(all); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, results.StatusTable(all, hours, now))
		}

		if !results.Healthy(all, hours, now) {
			return &ExitError{Code: 1}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&staleHours, "stale-hours", results.DefaultStaleHours, "hours after which a result is stale")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the results as JSON")
	rootCmd.AddCommand(statusCmd)
}
