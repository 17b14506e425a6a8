// Command bitslides runs the folder-synchronizer engine: it discovers
// volumes and slides from one or more rootset configs, plans the sync jobs
// their routes imply, and then watches the filesystem until it receives a
// shutdown signal. See spec §6.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/bitslides/internal/checksum"
	"github.com/cuemby/bitslides/internal/config"
	"github.com/cuemby/bitslides/internal/executor"
	"github.com/cuemby/bitslides/internal/log"
	"github.com/cuemby/bitslides/internal/metrics"
	"github.com/cuemby/bitslides/internal/mover"
	"github.com/cuemby/bitslides/internal/planner"
	"github.com/cuemby/bitslides/internal/topology"
	"github.com/cuemby/bitslides/internal/tracer"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bitslides",
	Short: "Multi-volume folder synchronizer",
	Long: `bitslides watches a set of "volumes" (folders with a slides
subfolder) and keeps their slides in sync with each other, routing through
a fallback volume when a slide's own destination isn't available.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringArrayP("config", "c", nil, "rootset config file (repeatable; defaults to the well-known search path)")
	rootCmd.Flags().CountP("verbose", "v", "increase log verbosity (repeatable: warn, info, debug, trace)")
	rootCmd.Flags().BoolP("dry-run", "n", false, "log what would move without touching the filesystem (requires at least -vv)")
	rootCmd.Flags().Bool("non-safe", false, "disable .wip staged writes; move files directly into place")
	rootCmd.Flags().Uint8("retries", 5, "checksum-mismatch retries per file move")
	rootCmd.Flags().String("check", "", "verify moves with a checksum algorithm (md5, sha256, crc32, xxhash); empty disables verification")
	rootCmd.Flags().String("collision", string(config.CollisionOverwrite), "destination collision policy (overwrite, skip, fail, rename:<suffix>)")
	rootCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (empty disables the endpoint)")
}

func run(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	level := log.LevelFromVerbosity(verbosity)
	log.Init(log.Config{Level: level})

	logger := log.WithComponent("main")

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun && level != log.InfoLevel && level != log.DebugLevel && level != log.TraceLevel {
		return fmt.Errorf("--dry-run requires at least -vv (Info level or above)")
	}

	paths, _ := cmd.Flags().GetStringArray("config")
	if len(paths) == 0 {
		paths = config.DefaultConfigPaths()
	}
	cfg, err := config.LoadFiles(paths)
	if err != nil {
		log.Fatal(fmt.Sprintf("loading configuration: %v", err))
	}
	cfg.DryRun = dryRun

	collisionFlag, _ := cmd.Flags().GetString("collision")
	collision, err := config.ParseCollisionPolicy(collisionFlag)
	if err != nil {
		return fmt.Errorf("parsing --collision: %w", err)
	}

	var check *checksum.Algorithm
	if checkFlag, _ := cmd.Flags().GetString("check"); checkFlag != "" {
		algo := checksum.Algorithm(checkFlag)
		if !algo.Valid() {
			return fmt.Errorf("unknown --check algorithm: %q", checkFlag)
		}
		check = &algo
	}

	nonSafe, _ := cmd.Flags().GetBool("non-safe")
	retries, _ := cmd.Flags().GetUint8("retries")

	strategy := mover.Strategy{
		Collision: collision,
		Safe:      !nonSafe,
		Check:     check,
		Retries:   retries,
	}

	tracePath := cfg.TracePath
	if tracePath != "" {
		tracePath = config.ExpandTracePath(tracePath, time.Now())
	}
	trace, traceDone, err := tracer.New(tracePath)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}

	volumes := topology.Discover(cfg.Rootsets)
	for _, v := range volumes {
		status := "enabled"
		if v.Disabled {
			status = "disabled"
		}
		metrics.VolumesTotal.WithLabelValues(status).Inc()
	}

	jobs := planner.Build(volumes)
	for _, job := range jobs {
		route := "indirect"
		if job.Direct() {
			route = "direct"
		}
		metrics.SyncJobsTotal.WithLabelValues(route).Inc()
	}
	logger.Info().Int("volumes", len(volumes)).Int("jobs", len(jobs)).Msg("topology discovered")

	token, err := executor.Start(volumes, jobs, cfg.DryRun, trace, strategy)
	if err != nil {
		return fmt.Errorf("starting executor: %w", err)
	}
	token = token.WithTraceDone(traceDone)

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	if err := executor.Stop(token); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
