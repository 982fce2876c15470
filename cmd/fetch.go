package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchInvalidate bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the source spreadsheet and cache a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		cache, src, err := newCache("")
		if err != nil {
			return err
		}
		if fetchInvalidate {
			if err := cache.Invalidate(); err != nil {
				return fmt.Errorf("invalidate cache: %w", err)
			}
			fmt.Println("✓ Cache invalidated")
		}
		snap, err := cache.Load(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Snapshot %s from %s\n", snap.ID, src)
		fmt.Printf("  fetched at %s, %d rows, %d columns\n",
			snap.FetchedAt.Format("2006-01-02 15:04:05 MST"),
			len(snap.Table.Rows), len(snap.Table.Header))
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchInvalidate, "invalidate", false, "clear the cached snapshot and refetch")
	rootCmd.AddCommand(fetchCmd)
}
