package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/results"
	"github.com/openlegaldata/oldp-ingestor/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run several ingestion jobs from a file",
	Long: `Batch runs one ingestion job per line of the input file:

  <laws|cases> <provider> [key=value ...]

Keys are court, date-from, date-to, limit, search-term, path and
request-delay. Blank lines, # comments and duplicate lines are skipped.
Every job builds its own provider and writes its own result file.

Example:
  oldp-ingestor batch nightly.txt
  oldp-ingestor batch nightly.txt --concurrency 4 --timeout 6h`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of jobs run at the same time")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "total timeout for the batch (0 = none)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	specs, err := worker.ReadJobsFromFile(args[0])
	if err != nil {
		return configError(fmt.Errorf("read batch file: %w", err))
	}

	ctx := cmd.Context()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, batchTimeout)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "Running %d job(s) with %d worker(s)\n", len(specs), concurrency)

	processor := worker.NewBatchProcessor(newRunner(loadConfig()), concurrency)
	outcomes := processor.Process(ctx, specs)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Job", "Status", "Created", "Skipped", "Errors", "Duration"})
	code := 0
	for _, o := range outcomes {
		if o.Error != nil {
			t.AppendRow(table.Row{o.Spec.String(), "config error", "", "", "", ""})
			fmt.Fprintf(os.Stderr, "%s: %v\n", o.Spec, o.Error)
			code = max(code, 1)
			continue
		}
		r := o.Result
		t.AppendRow(table.Row{o.Spec.String(), string(r.Status), r.Created, r.Skipped, r.Errors, results.FormatDuration(r.DurationSeconds)})
		code = max(code, r.ExitCode())
	}
	if missing := len(specs) - len(outcomes); missing > 0 {
		fmt.Fprintf(os.Stderr, "%d job(s) did not finish before the batch was cancelled\n", missing)
		code = max(code, 2)
	}
	t.SetStyle(table.StyleLight)
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
