package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Data source
	SourceURL  string `mapstructure:"source_url" yaml:"source_url"`
	SheetName  string `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex int    `mapstructure:"sheet_index" yaml:"sheet_index"`
	Delimiter  string `mapstructure:"delimiter" yaml:"delimiter"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// Conformance policy
	MinGroupSize int     `mapstructure:"min_group_size" yaml:"min_group_size"`
	Policy       string  `mapstructure:"policy" yaml:"policy"`
	TSafe        float64 `mapstructure:"t_safe" yaml:"t_safe"`
	TWatch       float64 `mapstructure:"t_watch" yaml:"t_watch"`
	FracSafeMax  float64 `mapstructure:"frac_safe_max" yaml:"frac_safe_max"`
	FracWatchMax float64 `mapstructure:"frac_watch_max" yaml:"frac_watch_max"`
	PercentileLo float64 `mapstructure:"percentile_lo" yaml:"percentile_lo"`
	PercentileHi float64 `mapstructure:"percentile_hi" yaml:"percentile_hi"`
	BinWidth     float64 `mapstructure:"bin_width" yaml:"bin_width"`
	MechELPolicy string  `mapstructure:"mech_el_policy" yaml:"mech_el_policy"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// API server
	ServeAddr string `mapstructure:"serve_addr" yaml:"serve_addr"`
}

// Save writes the given configuration to the cfgFile path. If cfgFile is
// empty, it writes to ~/.coilqa/config.yaml, creating the directory if
// necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".coilqa")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("COILQA")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sheet_index", 1)
	v.SetDefault("min_group_size", 30)
	v.SetDefault("policy", "strict")
	v.SetDefault("t_safe", 7.0)
	v.SetDefault("t_watch", 5.0)
	v.SetDefault("frac_safe_max", 0.0)
	v.SetDefault("frac_watch_max", 0.05)
	v.SetDefault("percentile_lo", 0.10)
	v.SetDefault("percentile_hi", 0.90)
	v.SetDefault("bin_width", 1.0)
	v.SetDefault("mech_el_policy", "two-sided")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("serve_addr", ":8085")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".coilqa")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve cache_dir default: ~/.coilqa/cache
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		c.CacheDir = filepath.Join(home, ".coilqa", "cache")
	}
	return &c, nil
}
