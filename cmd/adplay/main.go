package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
	"github.com/PizzaHomicide/adplay/internal/metrics"
	"github.com/PizzaHomicide/adplay/internal/service"
	"github.com/PizzaHomicide/adplay/internal/ui/tui"
	"github.com/PizzaHomicide/adplay/internal/version"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help", "help":
			printUsage()
			return
		case "-v", "--version", "version":
			fmt.Println(version.GetVersionInfo())
			return
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// It is unrecoverable if we cannot produce an application config
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if len(args) > 0 && args[0] == "add" {
		if err := addToCatalog(args[1:]); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	// Initialise logger
	logger, err := log.New(log.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	// Set the default global logger
	log.SetDefaultLogger(logger)

	log.Info("Starting up adplay", "version", version.GetVersion(), "build_time", version.GetBuildTime())

	if err := run(cfg, initialEntry(args)); err != nil {
		log.Error("Unhandled error while running adplay", "error", err)
		logger.Close()
		os.Exit(1)
	}

	log.Info("adplay shutting down.  Goodbye!")
}

// run shows the TUI and, when configured, serves metrics until the TUI exits
func run(cfg *config.Config, initial *config.CatalogEntry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := service.NewPlaybackService(cfg, metrics.New(reg))

	g, gctx := errgroup.WithContext(ctx)
	tuiCtx, tuiDone := context.WithCancel(gctx)

	g.Go(func() error {
		// The metrics server and any running session stop with the TUI
		defer tuiDone()
		return tui.Run(tuiCtx, cfg, svc, initial)
	})

	if addr := cfg.Metrics.ListenAddress; addr != "" {
		log.Info("Serving metrics", "address", addr)
		g.Go(func() error {
			// Metrics are optional, so a failing listener does not stop playback
			if err := metrics.Serve(tuiCtx, addr, reg); err != nil {
				log.Warn("Metrics server stopped", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// initialEntry builds the entry to play straight away from the command line arguments, if any
func initialEntry(args []string) *config.CatalogEntry {
	if len(args) == 0 {
		return nil
	}
	entry := &config.CatalogEntry{Source: args[0]}
	if len(args) > 1 {
		entry.Title = strings.Join(args[1:], " ")
	}
	return entry
}

// addToCatalog saves a source to the catalog section of the config file
func addToCatalog(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: adplay add <source-uri> [title]")
	}
	entry := *initialEntry(args)
	if entry.Title == "" {
		entry.Title = entry.Source
	}

	err := config.UpdateConfig(func(cfg *config.Config) {
		for i, existing := range cfg.Catalog {
			if existing.Source == entry.Source {
				cfg.Catalog[i].Title = entry.Title
				return
			}
		}
		cfg.Catalog = append(cfg.Catalog, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to add %q to the catalog: %w", entry.Source, err)
	}
	fmt.Printf("Added %q to the catalog\n", entry.Title)
	return nil
}

func printUsage() {
	fmt.Println(version.GetVersionInfo())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  adplay                        Open the catalog")
	fmt.Println("  adplay <source-uri> [title]   Play a video straight away")
	fmt.Println("  adplay add <source-uri> [title]")
	fmt.Println("                                Add a video to the catalog")
	fmt.Println("  adplay version                Print the version")
	fmt.Println()
	fmt.Println("Environment variables:")
	for _, envVar := range config.EnvVarHelp() {
		fmt.Printf("  %-40s %s\n", envVar[0], envVar[1])
	}
}
