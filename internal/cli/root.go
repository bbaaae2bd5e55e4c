// Package cli is the issuecompass command line: one-shot analyses against the
// configured LLM without the HTTP server or its infrastructure.
package cli

import (
	"github.com/spf13/cobra"

	"issuecompass/internal/app"
	"issuecompass/internal/bootstrap"
	"issuecompass/internal/config"
	"issuecompass/internal/enrich"
)

// Swappable in tests.
var (
	loadConfig          = config.Load
	newAnalysisClient   = func(cfg *config.Config) app.AnalysisClient { return bootstrap.NewAnalysisClient(cfg) }
	newClock            = enrich.RealClock
	defaultLinesPerPage = 60
)

var rootCmd = &cobra.Command{
	Use:           "issuecompass",
	Short:         "Break a life issue into ranked, detailed sub-issues",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
