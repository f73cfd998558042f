package model

import "time"

// Config is the complete runtime configuration of the ingestor
type Config struct {
	API     APIConfig     `yaml:"api"`
	EURLex  EURLexConfig  `yaml:"eurlex"`
	HTTP    HTTPConfig    `yaml:"http"`
	Browser BrowserConfig `yaml:"browser"`
	Cache   CacheConfig   `yaml:"cache"`
	Results ResultsConfig `yaml:"results"`
}

// APIConfig configures the OLDP REST API sink
type APIConfig struct {
	URL      string `yaml:"url"`       // Base URL of the OLDP instance
	Token    string `yaml:"token"`     // API token, sent as "Token <token>"
	HTTPAuth string `yaml:"http_auth"` // Optional basic auth, "user:password"
}

// EURLexConfig holds legacy EUR-Lex credentials. The SPARQL endpoint does not need them.
type EURLexConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HTTPConfig configures the retrying transport
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RequestDelay  time.Duration `yaml:"request_delay"`
	MaxRetries    int           `yaml:"max_retries"`
	UserAgent     string        `yaml:"user_agent"`
	HTTPProxy     string        `yaml:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// BrowserConfig configures the headless browser used for SPA sources
type BrowserConfig struct {
	ExecPath     string        `yaml:"exec_path"` // Chrome executable, falls back to CHROME_PATH
	RequestDelay time.Duration `yaml:"request_delay"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
}

// CacheConfig configures the optional response cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// ResultsConfig configures run-result bookkeeping
type ResultsConfig struct {
	Dir        string `yaml:"dir"`
	StaleHours int    `yaml:"stale_hours"`
}

// Version of the ingestor, reported in the User-Agent
const Version = "0.1.2"

// DefaultUserAgent identifies the ingestor to remote sources
const DefaultUserAgent = "oldp-ingestor/" + Version + " (+https://github.com/openlegaldata)"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			RequestDelay: 200 * time.Millisecond,
			MaxRetries:   5,
			UserAgent:    DefaultUserAgent,
		},
		Browser: BrowserConfig{
			RequestDelay: 500 * time.Millisecond,
			WaitTimeout:  15 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Results: ResultsConfig{
			StaleHours: 168,
		},
	}
}
