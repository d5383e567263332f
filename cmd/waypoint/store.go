package main

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/adapters/natskv"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/adapters/sqlite"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/spf13/cobra"
)

// listingStore is what the snapshot commands need from a backend.
type listingStore interface {
	ports.Store
	ports.Lister
}

// openStore opens the backend selected by --store. The returned close func is never nil.
func openStore(cmd *cobra.Command) (listingStore, func(), error) {
	kind, _ := cmd.Flags().GetString("store")
	dsn, _ := cmd.Flags().GetString("dsn")
	noop := func() {}

	switch kind {
	case "", "file":
		dir, _ := cmd.Flags().GetString("dir")
		return file.New(dir), noop, nil
	case "sqlite":
		if dsn == "" {
			dsn = "waypoint.db"
		}
		store, err := sqlite.Open(dsn)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		if dsn == "" {
			dsn = "localhost:6379"
		}
		store := redis.New(dsn, "", 0)
		return store, func() { _ = store.Close() }, nil
	case "nats":
		store, err := natskv.New(natskv.Config{URL: dsn})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q", kind)
	}
}
