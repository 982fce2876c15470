package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/coilforge/coilqa-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set CoilQA configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("source_url: %s\n", cfg.SourceURL)
		if cfg.SheetName != "" {
			fmt.Printf("sheet_name: %s\n", cfg.SheetName)
		}
		fmt.Printf("sheet_index: %d\n", cfg.SheetIndex)
		if cfg.Delimiter != "" {
			fmt.Printf("delimiter: %s\n", cfg.Delimiter)
		}
		fmt.Printf("cache_dir: %s\n", cfg.CacheDir)
		fmt.Printf("min_group_size: %d\n", cfg.MinGroupSize)
		fmt.Printf("policy: %s\n", cfg.Policy)
		fmt.Printf("t_safe: %g\n", cfg.TSafe)
		fmt.Printf("t_watch: %g\n", cfg.TWatch)
		fmt.Printf("frac_safe_max: %g\n", cfg.FracSafeMax)
		fmt.Printf("frac_watch_max: %g\n", cfg.FracWatchMax)
		fmt.Printf("percentile_lo: %g\n", cfg.PercentileLo)
		fmt.Printf("percentile_hi: %g\n", cfg.PercentileHi)
		fmt.Printf("bin_width: %g\n", cfg.BinWidth)
		fmt.Printf("mech_el_policy: %s\n", cfg.MechELPolicy)
		fmt.Printf("serve_addr: %s\n", cfg.ServeAddr)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "source_url":
			cfg.SourceURL = val
		case "sheet_name":
			cfg.SheetName = val
		case "sheet_index":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for sheet_index: %v", val)
			}
			cfg.SheetIndex = i
		case "delimiter":
			switch val {
			case ",", ";", "tab", "\t":
				cfg.Delimiter = val
			default:
				return fmt.Errorf("invalid delimiter: %s (use ','|';'|'tab')", val)
			}
		case "cache_dir":
			cfg.CacheDir = val
		case "min_group_size":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for min_group_size: %v", val)
			}
			cfg.MinGroupSize = i
		case "policy":
			switch val {
			case "strict", "graduated", "fraction":
				cfg.Policy = val
			default:
				return fmt.Errorf("invalid policy: %s (use strict, graduated, or fraction)", val)
			}
		case "t_safe":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for t_safe: %v", val)
			}
			cfg.TSafe = f
		case "t_watch":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for t_watch: %v", val)
			}
			cfg.TWatch = f
		case "frac_safe_max":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 || f >= 1 {
				return fmt.Errorf("invalid frac_safe_max: %v (use a fraction in [0,1))", val)
			}
			cfg.FracSafeMax = f
		case "frac_watch_max":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f >= 1 {
				return fmt.Errorf("invalid frac_watch_max: %v (use a fraction in (0,1))", val)
			}
			cfg.FracWatchMax = f
		case "percentile_lo":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f >= 1 {
				return fmt.Errorf("invalid percentile_lo: %v (use a fraction in (0,1))", val)
			}
			cfg.PercentileLo = f
		case "percentile_hi":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f >= 1 {
				return fmt.Errorf("invalid percentile_hi: %v (use a fraction in (0,1))", val)
			}
			cfg.PercentileHi = f
		case "bin_width":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 {
				return fmt.Errorf("invalid bin_width: %v", val)
			}
			cfg.BinWidth = f
		case "mech_el_policy":
			switch val {
			case "two-sided", "one-sided":
				cfg.MechELPolicy = val
			default:
				return fmt.Errorf("invalid mech_el_policy: %s (use two-sided or one-sided)", val)
			}
		case "serve_addr":
			cfg.ServeAddr = val
		case "http_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for http_timeout_sec: %v", val)
			}
			cfg.HTTPTimeoutSec = i
		case "retry_max_attempts":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for retry_max_attempts: %v", val)
			}
			cfg.RetryMaxAttempts = i
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Printf("✓ Set %s\n", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
