package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var enrichName string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single company and print the merged facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichName == "" {
			return eris.New("--name is required")
		}

		env, err := initEnv(cmd.Context(), cfg, "enrich", false)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Aggregator.Enrich(cmd.Context(), enrichName)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		out := rec.ToMap()
		out["company_name"] = enrichName
		return writeJSON(os.Stdout, out)
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "canonical company name")
	rootCmd.AddCommand(enrichCmd)
}
