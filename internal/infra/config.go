package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Sensitive or deployment-specific
// values can be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	RPC struct {
		HTTPURL   string `yaml:"http_url"`
		WSURL     string `yaml:"ws_url"`
		ProgramID string `yaml:"program_id"`
	} `yaml:"rpc"`

	Market struct {
		Address string `yaml:"address"`
		Owner   string `yaml:"owner"` // wallet identity; empty means read-only
	} `yaml:"market"`

	Refresh struct {
		WindowMS int `yaml:"window_ms"`
	} `yaml:"refresh"`

	Sender struct {
		Mode string `yaml:"mode"` // "dryrun" or "rpc"
	} `yaml:"sender"`

	Balances struct {
		Base  int64 `yaml:"base"`
		Quote int64 `yaml:"quote"`
	} `yaml:"balances"`

	API struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"api"`

	NATS struct {
		URL           string `yaml:"url"` // empty disables publishing
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// ResolveConfigPath picks the configuration file: the CLOB_CONFIG env var if
// set, otherwise the default location under configs/.
func ResolveConfigPath() string {
	if v := os.Getenv("CLOB_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Refresh.WindowMS == 0 {
		c.Refresh.WindowMS = 1000
	}
	if c.Sender.Mode == "" {
		c.Sender.Mode = "dryrun"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "book"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !hasPrefix(c.RPC.HTTPURL, "http://") && !hasPrefix(c.RPC.HTTPURL, "https://") {
		return fmt.Errorf("invalid RPC HTTP URL: %q", c.RPC.HTTPURL)
	}
	if c.RPC.WSURL != "" && !hasPrefix(c.RPC.WSURL, "ws://") && !hasPrefix(c.RPC.WSURL, "wss://") {
		return fmt.Errorf("invalid RPC WS URL: %q", c.RPC.WSURL)
	}
	if c.Market.Address == "" {
		return fmt.Errorf("market address is required")
	}
	if c.Refresh.WindowMS <= 0 {
		return fmt.Errorf("refresh window must be positive")
	}
	switch strings.ToLower(c.Sender.Mode) {
	case "dryrun", "rpc":
	default:
		return fmt.Errorf("unknown sender mode: %q", c.Sender.Mode)
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values. Env wins
// so deployments never need secrets or endpoints in the config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("CLOB_RPC_URL"); v != "" {
		cfg.RPC.HTTPURL = v
	}
	if v := os.Getenv("CLOB_WS_URL"); v != "" {
		cfg.RPC.WSURL = v
	}
	if v := os.Getenv("CLOB_MARKET"); v != "" {
		cfg.Market.Address = v
	}
	if v := os.Getenv("CLOB_OWNER"); v != "" {
		cfg.Market.Owner = v
	}
	if v := os.Getenv("CLOB_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("CLOB_SENDER_MODE"); v != "" {
		cfg.Sender.Mode = v
	}
}
