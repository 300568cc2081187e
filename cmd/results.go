package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored bulk results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("results: no store configured (store.driver is none)")
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		tierFlag, _ := cmd.Flags().GetString("tier")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.ResultFilter{Limit: limit}
		if tierFlag != "" {
			tier, err := model.ParseTier(tierFlag)
			if err != nil {
				return err
			}
			filter.Tier = tier
		}

		list, err := st.ListResults(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if asJSON {
			payload := make([]map[string]any, len(list))
			for i, r := range list {
				payload[i] = r.Result.ToMap()
				payload[i]["run_id"] = r.RunID
			}
			return writeJSON(os.Stdout, map[string]any{"results": payload})
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}
		formatResultsList(os.Stdout, list)

		snap, err := monitoring.NewCollector(st, nil).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "results summary")
		}
		formatTierSummary(os.Stdout, snap)
		return nil
	},
}

func formatResultsList(out io.Writer, list []store.StoredResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY_ID\tCOMPANY\tTIER\tTOP_TA\tPRODUCTS\tUPCOMING\tUPDATED")
	for _, r := range list {
		res := r.Result
		topTA := "-"
		if res.Derived.TopTA != nil {
			topTA = *res.Derived.TopTA
		}
		upcoming := "-"
		if res.NumUpcoming != nil {
			upcoming = fmt.Sprint(*res.NumUpcoming)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			res.CompanyID,
			res.CanonicalName,
			res.AssignedTier,
			topTA,
			res.Derived.NumProducts,
			upcoming,
			r.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	_ = w.Flush()
}

func formatTierSummary(out io.Writer, snap *monitoring.Snapshot) {
	_, _ = fmt.Fprintf(out, "\nStored results: %d\n", snap.Total)
	for _, tier := range model.Tiers() {
		if n := snap.ByTier[tier]; n > 0 {
			_, _ = fmt.Fprintf(out, "  %-18s %d\n", tier, n)
		}
	}
}

func init() {
	resultsCmd.Flags().Int("limit", 50, "maximum results to show")
	resultsCmd.Flags().String("tier", "", "filter by tier (e.g. TIER_1)")
	resultsCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(resultsCmd)
}
