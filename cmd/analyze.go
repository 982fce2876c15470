package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/report"
	"github.com/coilforge/coilqa-cli/internal/schema"
)

var (
	anaFile       string
	anaPolicy     string
	anaMinGroup   int
	anaTSafe      float64
	anaTWatch     float64
	anaGroupBy    []string
	anaOutputPath string
	anaCSVPath    string
	anaJSONPath   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the conformance pipeline and print a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		acfg, err := analysisConfig()
		if err != nil {
			return err
		}
		// Flag overrides
		if cmd.Flags().Changed("policy") {
			switch anaPolicy {
			case "strict":
				acfg.Policy = conformance.PolicyStrict
			case "graduated":
				acfg.Policy = conformance.PolicyGraduated
			case "fraction":
				acfg.Policy = conformance.PolicyFraction
			default:
				return fmt.Errorf("unsupported --policy: %s (use strict|graduated|fraction)", anaPolicy)
			}
		}
		if anaMinGroup > 0 {
			acfg.Aggregate.MinGroupSize = anaMinGroup
		}
		if cmd.Flags().Changed("t-safe") {
			acfg.Thresholds.Safe = anaTSafe
		}
		if cmd.Flags().Changed("t-watch") {
			acfg.Thresholds.Watch = anaTWatch
		}
		if err := acfg.Thresholds.Validate(); err != nil {
			return err
		}
		if len(anaGroupBy) > 0 {
			roles := make([]schema.Role, 0, len(anaGroupBy))
			for _, g := range anaGroupBy {
				roles = append(roles, schema.Role(strings.TrimSpace(g)))
			}
			acfg.Aggregate.KeyRoles = roles
		}

		cache, src, err := newCache(anaFile)
		if err != nil {
			return err
		}
		snap, err := cache.Load(cmd.Context())
		if err != nil {
			return err
		}
		ds, err := datasetFromSnapshot(snap)
		if err != nil {
			return err
		}
		res := conformance.Run(ds, acfg)

		md := report.Markdown(res, src)
		written := false
		if anaOutputPath != "" {
			if err := os.WriteFile(anaOutputPath, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote report to %s\n", anaOutputPath)
			written = true
		}
		if anaJSONPath != "" {
			b, err := report.JSON(res)
			if err != nil {
				return fmt.Errorf("render json: %w", err)
			}
			if err := os.WriteFile(anaJSONPath, b, 0o644); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
			fmt.Printf("✓ Wrote JSON result to %s\n", anaJSONPath)
			written = true
		}
		if anaCSVPath != "" {
			f, err := os.Create(anaCSVPath)
			if err != nil {
				return fmt.Errorf("create csv: %w", err)
			}
			defer f.Close()
			if err := report.WriteGroupsCSV(f, res.Groups); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			fmt.Printf("✓ Wrote group summaries to %s\n", anaCSVPath)
			written = true
		}
		if !written {
			fmt.Println(md)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&anaFile, "file", "", "analyze a local .xlsx/.csv export instead of the remote source")
	analyzeCmd.Flags().StringVar(&anaPolicy, "policy", "", "verdict policy: strict|graduated|fraction (overrides config)")
	analyzeCmd.Flags().IntVar(&anaMinGroup, "min-group", 0, "minimum coils per group for statistics (overrides config)")
	analyzeCmd.Flags().Float64Var(&anaTSafe, "t-safe", 0, "graduated SAFE margin threshold (overrides config)")
	analyzeCmd.Flags().Float64Var(&anaTWatch, "t-watch", 0, "graduated WATCH margin threshold (overrides config)")
	analyzeCmd.Flags().StringSliceVar(&anaGroupBy, "group-by", nil, "key roles for grouping (default: full identifying tuple)")
	analyzeCmd.Flags().StringVar(&anaOutputPath, "output", "", "write the markdown report to a file")
	analyzeCmd.Flags().StringVar(&anaCSVPath, "csv", "", "write group summaries to a CSV file")
	analyzeCmd.Flags().StringVar(&anaJSONPath, "json", "", "write the full result as JSON to a file")
	rootCmd.AddCommand(analyzeCmd)
}
