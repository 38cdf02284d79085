package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFlag string

var rootCmd = &cobra.Command{
	Use:           "structdex",
	Short:         "structdex document store over SQL",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "config environment (default: $ENV or local)")
	rootCmd.AddCommand(serveCmd, syncCmd, explainCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
