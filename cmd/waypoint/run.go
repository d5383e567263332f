package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/console"
	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// EncryptionKeyEnv holds a base64 AES-256 key that enables snapshot encryption.
const EncryptionKeyEnv = "WAYPOINT_ENCRYPTION_KEY"

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Walk through a flow interactively",
	Long: `Loads a definition, resumes the stored snapshot of the instance and reads
navigation commands from stdin. Type "help" at the prompt for the commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := loggerFor(cmd)
		if err != nil {
			return err
		}

		def, err := file.LoadFile(args[0])
		if err != nil {
			return err
		}

		store, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		serializer, err := serializerFor(cmd)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(registry)
		if err != nil {
			return err
		}

		var persister ports.FlowPersister = persistence.New(store,
			persistence.WithSerializer(serializer),
			persistence.WithLogger(logger),
		)
		persister = metrics.Persister(persister)

		managerOpts := []session.Option{session.WithLogger(logger)}
		if rs, ok := store.(*redis.Store); ok {
			managerOpts = append(managerOpts, session.WithLocker(redis.NewLocker(rs.Client(), redis.DefaultPrefix)))
		}
		persister = session.NewManager(persister, managerOpts...)

		instance, _ := cmd.Flags().GetString("instance")
		variant, _ := cmd.Flags().GetString("variant")
		autoSave, _ := cmd.Flags().GetBool("autosave")
		strict, _ := cmd.Flags().GetBool("strict")

		flow, err := waypoint.New(def.Bare(), domain.Context{},
			waypoint.WithPersister(persister),
			waypoint.WithInstanceID(instance),
			waypoint.WithVariantID(variant),
			waypoint.WithAutoSave(autoSave),
			waypoint.WithStrict(strict),
			waypoint.WithLogger(logger),
			waypoint.WithHooks(waypoint.Hooks{
				OnTransition: metrics.ObserveTransition,
				OnPersistenceError: func(err error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "persistence: %v\n", err)
				},
			}),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			srv := &http.Server{
				Addr:              addr,
				Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics server failed", "addr", addr, "err", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		if flow.Restore(ctx) {
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s at step %q\n", flow.Key(), flow.StepID())
		}

		err = console.New(flow, cmd.InOrStdin(), cmd.OutOrStdout(), console.WithLogger(logger)).Run(ctx)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}
		return err
	},
}

// serializerFor picks the snapshot encoding from --format and wraps it with
// PII masking and, when EncryptionKeyEnv is set, encryption.
func serializerFor(cmd *cobra.Command) (ports.Serializer, error) {
	format, _ := cmd.Flags().GetString("format")
	mask, _ := cmd.Flags().GetStringSlice("mask")

	var base ports.Serializer
	switch format {
	case "", "json":
		base = persistence.JSONSerializer{}
	case "yaml":
		base = persistence.YAMLSerializer{}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}

	var mws []middleware.Middleware
	for _, pattern := range mask {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid --mask pattern: %w", err)
		}
	}
	if len(mask) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(mask))
	}
	if raw := os.Getenv(EncryptionKeyEnv); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("%s must be a base64 encoded 32 byte key", EncryptionKeyEnv)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(base, mws...), nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("instance", "", "Instance id")
	runCmd.Flags().String("variant", "", "Variant id")
	runCmd.Flags().Bool("autosave", true, "Save after every change")
	runCmd.Flags().Bool("strict", false, "Report unresolved navigation as an error")
	runCmd.Flags().StringSlice("mask", nil, "Regexps of context keys masked before saving")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
}
