package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/leadscope/pkg/pipeline"
	"github.com/user/leadscope/pkg/report"
	"github.com/user/leadscope/pkg/tools"
)

var auditReq pipeline.Request
var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit a website directly (--url) or find and audit a business (--name, --location)",
	Example: `  leadscope audit --url acmeplumbing.com
  leadscope audit --name "Acme Plumbing" --location "Austin, TX" --industry plumber`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auditReq.Validate(); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		components, err := pipeline.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if !auditJSON {
			fmt.Println("Running audit (TLS, headers, DNS, ports, SEO, tech stack)...")
		}
		res, runErr := components.Pipeline.Run(ctx, auditReq)
		var renderErr *report.RenderError
		if runErr != nil && !errors.As(runErr, &renderErr) {
			return runErr
		}

		if auditJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			fmt.Println(tools.Summarize(res))
			if res.Narrative != "" {
				fmt.Println("Executive Summary:")
				fmt.Println(res.Narrative)
			}
		}
		return runErr
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditReq.URL, "url", "", "Website to audit (direct mode)")
	auditCmd.Flags().StringVar(&auditReq.Name, "name", "", "Business name (discovery mode, or report title in direct mode)")
	auditCmd.Flags().StringVar(&auditReq.Location, "location", "", "Business location, e.g. 'Austin, TX'")
	auditCmd.Flags().StringVar(&auditReq.Industry, "industry", "", "Industry, used to find competitors")
	auditCmd.Flags().StringVar(&auditReq.Reviews, "reviews", "", "Customer reviews, used for the website strategy when no site exists")
	auditCmd.Flags().BoolVar(&auditReq.NoReport, "no-report", false, "Skip writing the PDF report")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(auditCmd)
}
