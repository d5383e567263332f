package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/keyspace"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Manage persisted flow snapshots",
}

var snapshotLsCmd = &cobra.Command{
	Use:   "ls [flow-id]",
	Short: "List stored snapshots, optionally of one flow",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}

		out := cmd.OutOrStdout()
		count := 0
		for _, key := range keys {
			ref, err := keyspace.Default.Parse(key)
			if err != nil {
				continue
			}
			if len(args) == 1 && ref.FlowID != args[0] {
				continue
			}
			fmt.Fprintf(out, "%s\tflow=%s\tinstance=%s\tvariant=%s\n", key, ref.FlowID, dash(ref.InstanceID), dash(ref.VariantID))
			count++
		}
		if count == 0 {
			fmt.Fprintln(out, "No snapshots found.")
		}
		return nil
	},
}

var snapshotInspectCmd = &cobra.Command{
	Use:   "inspect <flow-id>",
	Short: "Print the stored snapshot of a flow instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		key := refKey(cmd, args[0])
		raw, err := store.Get(cmd.Context(), key)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("no snapshot stored under %s", key)
		}
		if err != nil {
			return err
		}

		// Decoding through the serializer checks the envelope and decrypts it.
		serializer, err := serializerFor(cmd)
		if err != nil {
			return err
		}
		snapshot, err := serializer.Unmarshal(raw)
		if err != nil {
			return fmt.Errorf("snapshot %s is unreadable: %w", key, err)
		}
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm <flow-id>",
	Short: "Remove the snapshot of a flow instance, or of every instance with --all",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		keys := []string{refKey(cmd, args[0])}
		if all, _ := cmd.Flags().GetBool("all"); all {
			stored, err := store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			keys = keys[:0]
			for _, ref := range keyspace.Default.Filter(stored, args[0]) {
				keys = append(keys, keyspace.Default.Key(ref))
			}
		}

		var failed []string
		for _, key := range keys {
			if err := store.Remove(cmd.Context(), key); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing %s: %v\n", key, err)
				failed = append(failed, key)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to remove %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotLsCmd, snapshotInspectCmd, snapshotRmCmd)

	for _, c := range []*cobra.Command{snapshotInspectCmd, snapshotRmCmd} {
		c.Flags().String("instance", "", "Instance id")
		c.Flags().String("variant", "", "Variant id")
	}
	snapshotRmCmd.Flags().Bool("all", false, "Remove every instance and variant of the flow")
}

func refKey(cmd *cobra.Command, flowID string) string {
	instance, _ := cmd.Flags().GetString("instance")
	variant, _ := cmd.Flags().GetString("variant")
	return keyspace.Key(flowID, instance, variant)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
