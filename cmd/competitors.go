package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/leadscope/pkg/discovery"
	"github.com/user/leadscope/pkg/engine"
	"github.com/user/leadscope/pkg/tools"
)

var competitorsID engine.Identity
var competitorsJSON bool

var competitorsCmd = &cobra.Command{
	Use:          "competitors",
	Short:        "List local competitors of a business",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if competitorsID.Location == "" || competitorsID.Industry == "" {
			return fmt.Errorf("--location and --industry are required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		search, err := discovery.NewProvider(cfg.Search)
		if err != nil {
			return err
		}
		finder := discovery.NewFinder(search, cfg.Search.CompetitorCap)

		found, err := finder.FindCompetitors(cmd.Context(), competitorsID)
		if err != nil {
			return err
		}
		if competitorsJSON {
			if found == nil {
				found = []engine.Competitor{}
			}
			return json.NewEncoder(os.Stdout).Encode(found)
		}
		if len(found) == 0 {
			fmt.Printf("No competitors found for %s in %s.\n", competitorsID.Industry, competitorsID.Location)
			return nil
		}
		fmt.Print(tools.FormatCompetitors(found))
		return nil
	},
}

func init() {
	competitorsCmd.Flags().StringVar(&competitorsID.DisplayName, "name", "", "Business name, excluded from results")
	competitorsCmd.Flags().StringVar(&competitorsID.URL, "url", "", "Business website, excluded from results")
	competitorsCmd.Flags().StringVar(&competitorsID.Location, "location", "", "Location to search")
	competitorsCmd.Flags().StringVar(&competitorsID.Industry, "industry", "", "Industry to search")
	competitorsCmd.Flags().BoolVar(&competitorsJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(competitorsCmd)
}
