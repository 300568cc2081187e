package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/model"
)

var (
	bulkCompanies string
	bulkProducts  string
	bulkSave      bool
	bulkOut       string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Enrich and tier a list of companies",
	Long:  "Loads companies and their product catalog (CSV or JSON, local path or URL), enriches and tiers each company, and prints the results as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bulkCompanies == "" {
			return eris.New("--companies is required")
		}
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "bulk", bulkSave)
		if err != nil {
			return err
		}
		defer env.Close()

		companies, err := env.Loader.Companies(ctx, bulkCompanies)
		if err != nil {
			return err
		}

		products := map[string][]model.Product{}
		if bulkProducts != "" {
			products, err = env.Loader.Products(ctx, bulkProducts)
			if err != nil {
				return err
			}
		}

		zap.L().Info("bulk input loaded",
			zap.Int("companies", len(companies)),
			zap.Int("catalog_companies", len(products)),
			zap.Bool("save", env.Store != nil),
		)

		results, err := env.Runner.Run(ctx, companies, products)
		if err != nil {
			return err
		}

		payload := make([]map[string]any, len(results))
		for i, r := range results {
			payload[i] = r.ToMap()
		}

		out := os.Stdout
		if bulkOut != "" {
			f, err := os.Create(bulkOut)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeJSON(out, map[string]any{"results": payload})
	},
}

func init() {
	bulkCmd.Flags().StringVar(&bulkCompanies, "companies", "", "companies CSV/JSON (id,canonical_name)")
	bulkCmd.Flags().StringVar(&bulkProducts, "products", "", "product catalog CSV/JSON (company,name,ta,launch_year,is_marketed,modality)")
	bulkCmd.Flags().BoolVar(&bulkSave, "save", false, "upsert results into the configured store")
	bulkCmd.Flags().StringVar(&bulkOut, "out", "", "write results to this file instead of stdout")
	rootCmd.AddCommand(bulkCmd)
}
