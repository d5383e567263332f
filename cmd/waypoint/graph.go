package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Render a flow definition as a Mermaid flowchart",
	Long: `Prints the step graph in Mermaid syntax. With --overlay the stored
snapshot of the selected instance highlights visited and current steps.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := file.LoadFile(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if withOverlay, _ := cmd.Flags().GetBool("overlay"); withOverlay {
			overlay, err = snapshotOverlay(cmd, def)
			if err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		return nil
	},
}

func snapshotOverlay(cmd *cobra.Command, def *domain.FlowDefinition) (*graph.Overlay, error) {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	key := refKey(cmd, def.ID)
	raw, err := store.Get(cmd.Context(), key)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	serializer, err := serializerFor(cmd)
	if err != nil {
		return nil, err
	}
	snapshot, err := serializer.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s is unreadable: %w", key, err)
	}
	return graph.OverlayFor(snapshot.State()), nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("overlay", false, "Highlight the stored snapshot of the instance")
	graphCmd.Flags().String("instance", "", "Instance id")
	graphCmd.Flags().String("variant", "", "Variant id")
}
