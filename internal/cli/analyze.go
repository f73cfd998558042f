package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlegaldata/oldp-ingestor/internal/courts"
	"github.com/openlegaldata/oldp-ingestor/internal/sink"
)

var (
	analyzeInput  string
	analyzeFormat string
)

var analyzeCourtsCmd = &cobra.Command{
	Use:   "analyze-courts",
	Short: "Analyse missing courts from ingestor logs",
	Long: `Collect the "Could not resolve court from name" errors of an ingestion
log and compare each name with the courts, cities and states of the
configured OLDP instance.

Example:
  oldp-ingestor analyze-courts --input ingest.log
  journalctl -u oldp-ingestor | oldp-ingestor analyze-courts --input - --format tsv`,
	Args: cobra.NoArgs,
	RunE: runAnalyzeCourts,
}

func init() {
	analyzeCourtsCmd.Flags().StringVar(&analyzeInput, "input", "", "log file path ('-' for stdin)")
	analyzeCourtsCmd.Flags().StringVar(&analyzeFormat, "format", "table", "output format: table or tsv")
	_ = analyzeCourtsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCourtsCmd)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func runAnalyzeCourts(cmd *cobra.Command, args []string) error {
	if analyzeFormat != "table" && analyzeFormat != "tsv" {
		return configError(fmt.Errorf("unknown format %q (expected table or tsv)", analyzeFormat))
	}

	in := cmd.InOrStdin()
	if analyzeInput != "-" {
		f, err := os.Open(analyzeInput)
		if err != nil {
			return configError(fmt.Errorf("open input: %w", err))
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	lines, err := readLines(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out := cmd.OutOrStdout()
	missing := courts.ParseMissing(lines)
	if len(missing) == 0 {
		fmt.Fprintln(out, "No 'court_not_found' errors found in input.")
		return nil
	}

	client, err := sink.NewAPIClient(loadConfig().API)
	if err != nil {
		return configError(err)
	}
	ctx := cmd.Context()

	fetch := func(label, path string) ([]map[string]any, error) {
		slog.InfoContext(ctx, "fetching "+label+" from OLDP API")
		items, err := client.GetAll(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", label, err)
		}
		slog.InfoContext(ctx, "fetched "+label, "count", len(items))
		return items, nil
	}

	courtItems, err := fetch("courts", "/api/courts/?format=json")
	if err != nil {
		return err
	}
	// courts already carry their city name
	if _, err := fetch("cities", "/api/cities/?format=json"); err != nil {
		return err
	}
	stateItems, err := fetch("states", "/api/states/?format=json")
	if err != nil {
		return err
	}

	analyses := courts.Analyze(missing, courts.CourtsFromAPI(courtItems), courts.StatesFromAPI(stateItems))
	if analyzeFormat == "tsv" {
		fmt.Fprintln(out, courts.FormatTSV(analyses))
	} else {
		fmt.Fprintln(out, courts.FormatTable(analyses))
	}
	return nil
}
