package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

var (
	cfgFile    string
	verbose    bool
	resultsDir string
	sinkType   string
	outputDir  string
)

// ExitError carries a process exit status out of a command. Err is nil
// when the run itself already reported its problems.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// configError marks operator mistakes detected before any network activity
func configError(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return err
	}
	return &ExitError{Code: 1, Err: err}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "oldp-ingestor",
	Short: "Ingest German and EU statutes and court decisions into Open Legal Data",
	Long: `oldp-ingestor fetches law books, laws and court decisions from public
legal-information portals, normalizes them and delivers them to an OLDP
instance through its REST API or to a directory of JSON files.

Every run writes a result file that the status command summarizes.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "oldp-ingestor v%s\n", model.Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.oldp-ingestor/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory for JSON result files (env: OLDP_RESULTS_DIR)")
	rootCmd.PersistentFlags().StringVar(&sinkType, "sink", "api", "output sink: api or json-file")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "output directory for the json-file sink")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("results.dir", rootCmd.PersistentFlags().Lookup("results-dir"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env, the config file and OLDP_* environment variables,
// then installs the logger.
func initConfig() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".oldp-ingestor"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("OLDP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindSettings()

	setupLogging(verbose)

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
