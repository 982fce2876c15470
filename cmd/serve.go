package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/coilforge/coilqa-cli/internal/schema"
	"github.com/coilforge/coilqa-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conformance API for dashboard frontends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		acfg, err := analysisConfig()
		if err != nil {
			return err
		}
		cache, src, err := newCache("")
		if err != nil {
			return err
		}
		addr := cfg.ServeAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := server.New(cache, schema.NewAdapter(nil), acfg)
		fmt.Printf("✓ Serving conformance API on %s (source: %s)\n", addr, src)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config serve_addr)")
	rootCmd.AddCommand(serveCmd)
}
