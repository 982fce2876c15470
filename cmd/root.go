package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/coilforge/coilqa-cli/internal/config"
	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/schema"
	"github.com/coilforge/coilqa-cli/internal/source"
)

var (
	// Global flags (wired to config at load)
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "coilqa",
	Short: "CoilQA CLI: spec-conformance analytics for coil hardness data",
	Long: `CoilQA fetches the coil measurement spreadsheet, classifies every coil
against its hardness tolerance range, aggregates grouped statistics, and
serves the results to dashboards as reports or a JSON API.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.coilqa/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded; check --config or ~/.coilqa/config.yaml")
	}
	return nil
}

func newSourceClient() *source.Client {
	return source.NewClient(
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		cfg.RetryMaxAttempts,
		time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
	)
}

func readOptions() source.ReadOptions {
	opt := source.ReadOptions{
		SheetName:  cfg.SheetName,
		SheetIndex: cfg.SheetIndex,
	}
	switch cfg.Delimiter {
	case ";":
		opt.Delimiter = ';'
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	}
	return opt
}

// newCache builds the snapshot cache over the configured remote source, or
// over a local file when localFile is non-empty.
func newCache(localFile string) (*source.Cache, string, error) {
	if localFile != "" {
		fetch := func(ctx context.Context) (*source.Table, error) {
			return source.ReadFile(localFile, readOptions())
		}
		// Local files skip the disk mirror: re-reading the file is cheaper
		// than maintaining a second copy.
		return source.NewCache("", localFile, fetch), localFile, nil
	}
	if cfg.SourceURL == "" {
		return nil, "", fmt.Errorf("no data source configured.\n" +
			"  Set one with: coilqa config set source_url <url>\n" +
			"  Or analyze a local export with: coilqa analyze --file data.xlsx")
	}
	client := newSourceClient()
	fetch := func(ctx context.Context) (*source.Table, error) {
		return client.FetchTable(ctx, cfg.SourceURL, readOptions())
	}
	return source.NewCache(cfg.CacheDir, cfg.SourceURL, fetch), cfg.SourceURL, nil
}

// analysisConfig translates the loaded configuration into the core's knobs.
func analysisConfig() (conformance.Config, error) {
	out := conformance.Config{
		Aggregate: conformance.AggregateOptions{
			MinGroupSize: cfg.MinGroupSize,
			PercentileLo: cfg.PercentileLo,
			PercentileHi: cfg.PercentileHi,
		},
		Thresholds:   conformance.Thresholds{Safe: cfg.TSafe, Watch: cfg.TWatch},
		BinWidth:     cfg.BinWidth,
		FracSafeMax:  cfg.FracSafeMax,
		FracWatchMax: cfg.FracWatchMax,
	}
	switch strings.ToLower(cfg.Policy) {
	case "", "strict":
		out.Policy = conformance.PolicyStrict
	case "graduated":
		out.Policy = conformance.PolicyGraduated
	case "fraction":
		out.Policy = conformance.PolicyFraction
	default:
		return out, fmt.Errorf("invalid policy: %s (use strict, graduated, or fraction)", cfg.Policy)
	}
	if out.FracWatchMax < out.FracSafeMax {
		return out, fmt.Errorf("fraction cutoffs: frac_watch_max (%g) must not be below frac_safe_max (%g)",
			out.FracWatchMax, out.FracSafeMax)
	}
	switch strings.ToLower(cfg.MechELPolicy) {
	case "", "two-sided":
		out.ELPolicy = conformance.ELTwoSided
	case "one-sided":
		out.ELPolicy = conformance.ELLowerOnly
	default:
		return out, fmt.Errorf("invalid mech_el_policy: %s (use two-sided or one-sided)", cfg.MechELPolicy)
	}
	if err := out.Thresholds.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// datasetFromSnapshot runs the schema adapter over a snapshot table.
func datasetFromSnapshot(snap *source.Snapshot) (*schema.Dataset, error) {
	adapter := schema.NewAdapter(nil)
	return adapter.Dataset(snap.Table.Header, snap.Table.Rows)
}
