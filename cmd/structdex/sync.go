package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync [set...]",
	Short: "Prune index and unique rows of members a set no longer declares",
	Long:  "Synchronizes the named sets, or every set declared in the config when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		names := args
		if len(names) == 0 {
			names = a.sets.Names()
		}
		for _, name := range names {
			sc, err := a.sets.Schema(name)
			if err != nil {
				return fmt.Errorf("sync %s: %w", name, err)
			}
			if err := a.sync.All(cmd.Context(), sc); err != nil {
				return fmt.Errorf("sync %s: %w", name, err)
			}
			a.logger.Info("Set synchronized", zap.String("set", name))
		}
		return nil
	},
}
