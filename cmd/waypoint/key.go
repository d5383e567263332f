package main

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key <flow-id>",
	Short: "Print the storage key of a flow instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instance, _ := cmd.Flags().GetString("instance")
		variant, _ := cmd.Flags().GetString("variant")
		if fresh, _ := cmd.Flags().GetBool("new-instance"); fresh {
			instance = keyspace.NewInstanceID()
		}
		fmt.Fprintln(cmd.OutOrStdout(), keyspace.Key(args[0], instance, variant))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.Flags().String("instance", "", "Instance id")
	keyCmd.Flags().String("variant", "", "Variant id")
	keyCmd.Flags().Bool("new-instance", false, "Generate a random instance id")
}
