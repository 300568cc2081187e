package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/pharma-enrich/internal/config"
	"github.com/sells-group/pharma-enrich/internal/model"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show tier definitions and the active thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatTiers(os.Stdout, cfg.Tiering)
		return nil
	},
}

func formatTiers(out io.Writer, t config.TieringConfig) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RULE\tTIER\tDESCRIPTION")
	for i, tier := range model.Tiers() {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, tier, tier.Description())
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nThresholds:\n")
	_, _ = fmt.Fprintf(out, "  top_ta_share_threshold:   %.2f\n", t.TopTAShareThreshold)
	_, _ = fmt.Fprintf(out, "  platform_share_threshold: %.2f\n", t.PlatformShareThreshold)
	_, _ = fmt.Fprintf(out, "  upcoming_ratio:           %.2f\n", t.UpcomingRatio)
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}
