package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/leadscope/pkg/config"
	"github.com/user/leadscope/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "leadscope",
	Short: "Digital audit and lead intelligence for local businesses",
	Long: `LeadScope audits a business's web presence (TLS, security headers, email
authentication, exposed ports, SEO, tech stack, contacts) and turns the facts
into a scored, client-ready PDF report with an AI-written executive summary.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.DebugEnabled = DebugMode
	},
}

var (
	DebugMode  bool
	configPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.leadscope/config.yaml)")
}
