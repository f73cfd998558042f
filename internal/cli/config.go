package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// bindSettings registers defaults and the environment names that do not
// follow the OLDP_<SECTION>_<KEY> scheme
func bindSettings() {
	d := model.DefaultConfig()
	viper.SetDefault("http.timeout", d.HTTP.Timeout)
	viper.SetDefault("http.request_delay", d.HTTP.RequestDelay)
	viper.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	viper.SetDefault("http.user_agent", d.HTTP.UserAgent)
	viper.SetDefault("browser.request_delay", d.Browser.RequestDelay)
	viper.SetDefault("browser.wait_timeout", d.Browser.WaitTimeout)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
	viper.SetDefault("results.stale_hours", d.Results.StaleHours)

	_ = viper.BindEnv("eurlex.user", "EURLEX_USER")
	_ = viper.BindEnv("eurlex.password", "EURLEX_PASSWORD")
	_ = viper.BindEnv("browser.exec_path", "OLDP_BROWSER_EXEC_PATH", "CHROME_PATH")
}

// loadConfig assembles the effective configuration from viper
func loadConfig() *model.Config {
	return &model.Config{
		API: model.APIConfig{
			URL:      viper.GetString("api.url"),
			Token:    viper.GetString("api.token"),
			HTTPAuth: viper.GetString("api.http_auth"),
		},
		EURLex: model.EURLexConfig{
			User:     viper.GetString("eurlex.user"),
			Password: viper.GetString("eurlex.password"),
		},
		HTTP: model.HTTPConfig{
			Timeout:       viper.GetDuration("http.timeout"),
			RequestDelay:  viper.GetDuration("http.request_delay"),
			MaxRetries:    viper.GetInt("http.max_retries"),
			UserAgent:     viper.GetString("http.user_agent"),
			HTTPProxy:     viper.GetString("http.http_proxy"),
			HTTPSProxy:    viper.GetString("http.https_proxy"),
			RespectRobots: viper.GetBool("http.respect_robots"),
		},
		Browser: model.BrowserConfig{
			ExecPath:     viper.GetString("browser.exec_path"),
			RequestDelay: viper.GetDuration("browser.request_delay"),
			WaitTimeout:  viper.GetDuration("browser.wait_timeout"),
		},
		Cache: model.CacheConfig{
			Enabled: viper.GetBool("cache.enabled"),
			Dir:     viper.GetString("cache.dir"),
			TTL:     viper.GetDuration("cache.ttl"),
		},
		Results: model.ResultsConfig{
			Dir:        viper.GetString("results.dir"),
			StaleHours: viper.GetInt("results.stale_hours"),
		},
	}
}

const masked = "********"

// redacted hides credentials for display
func redacted(cfg model.Config) model.Config {
	for _, s := range []*string{&cfg.API.Token, &cfg.API.HTTPAuth, &cfg.EURLex.Password} {
		if *s != "" {
			*s = masked
		}
	}
	return cfg
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage oldp-ingestor configuration",
	Long: `Manage oldp-ingestor configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (OLDP_*, EURLEX_*, CHROME_PATH), also read from .env
3. Config file (~/.oldp-ingestor/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration with credentials masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults and environment)\n\n")
		}

		yamlData, err := yaml.Marshal(redacted(*loadConfig()))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = out.Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.oldp-ingestor/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path := filepath.Join(home, ".oldp-ingestor", "config.yaml")
		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "Edit it with: $EDITOR %s\n", path)
		return nil
	},
}

// writeDefaultConfig writes the commented defaults to path. An existing
// file is left untouched.
func writeDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := `# oldp-ingestor configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (OLDP_API_URL, OLDP_API_TOKEN, OLDP_API_HTTP_AUTH,
#      OLDP_RESULTS_DIR, EURLEX_USER, EURLEX_PASSWORD, CHROME_PATH)
#   3. This config file
#   4. Built-in defaults
#
# Keep the API token in the environment rather than in this file.

`
	if _, err = f.WriteString(header); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if _, err = f.Write(yamlData); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
