package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	domquery "github.com/kailas-cloud/structdex/internal/domain/query"
)

var explainCmd = &cobra.Command{
	Use:   "explain <set> [query.json]",
	Short: "Print the SQL a JSON query translates to",
	Long:  "Reads the query document from the file argument, or from stdin when it is omitted or \"-\".",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 || args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		q, err := domquery.Parse(data)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ex, err := a.queries.Explain(args[0], q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ex)
	},
}
