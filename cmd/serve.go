package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/leadscope/pkg/pipeline"
	"github.com/user/leadscope/pkg/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Serve the audit API over HTTP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Server.ListenAddr = listenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		components, err := pipeline.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		srv := server.New(components.Pipeline)
		return server.ListenAndServe(ctx, cfg.Server.ListenAddr, srv.Routes(), cfg.Server.ShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides server.listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
