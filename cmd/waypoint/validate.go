package main

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check flow definitions for consistency",
	Long: `Parses each YAML or JSON definition, reports structural errors and
warns about steps that cannot be reached from the start step.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := loggerFor(cmd)
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			// LoadFile validates the definition
			def, err := file.LoadFile(path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
				failed++
				continue
			}
			for _, id := range definition.Unreachable(def) {
				logger.Warn("unreachable step", "file", path, "flow_id", def.ID, "step_id", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: flow %q is valid (%d steps)\n", path, def.ID, len(def.Steps))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
