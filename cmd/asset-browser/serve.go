package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"asset-browser/internal/catalog"
	"asset-browser/internal/filesystem"
	"asset-browser/internal/handlers"
	"asset-browser/internal/logging"
	"asset-browser/internal/memory"
	"asset-browser/internal/metrics"
	"asset-browser/internal/middleware"
	"asset-browser/internal/scan"
	"asset-browser/internal/startup"
	"asset-browser/internal/thumbs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the headless catalog service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		return err
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"assets":  config.AssetRoot,
		"cache":   config.CacheDir,
		"catalog": config.DataDir,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catStart := time.Now()
	cat, err := catalog.New(ctx, config.DatabasePath)
	if err != nil {
		return err
	}
	defer cat.Close()
	startup.LogCatalogInit(time.Since(catStart))

	installID, err := startup.EnsureInstallID(ctx, cat)
	if err != nil {
		logging.Warn("Could not establish install ID: %v", err)
	} else {
		logging.Info("  Install ID: %s", installID)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	cache := thumbs.NewCache(config.ThumbnailDir)
	scanner := scan.NewScanner(cat, cache, config.ThumbnailSize)
	warmer := scan.NewWarmer(cat, cache, scanner, monitor, config.ThumbnailSize)

	collector := metrics.NewCollector(cat, 30*time.Second)
	collector.Start()

	go periodicScans(ctx, cat, scanner, config)
	go periodicWarming(ctx, warmer, config.ThumbnailInterval)

	h := handlers.New(cat, cache, scanner, config)
	router := mux.NewRouter()
	h.Register(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, cancel, scanner, collector, monitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// periodicScans rescans the asset root on SCAN_INTERVAL. The first pass runs
// immediately so a fresh deployment has a populated catalog. Without a
// configured root, the last scanned folder is used once one exists.
func periodicScans(ctx context.Context, cat *catalog.Catalog, scanner *scan.Scanner, config *startup.Config) {
	runScan := func() {
		root := config.AssetRoot
		if root == "" {
			last, err := cat.GetLastRootFolder(ctx)
			if err != nil || last == "" {
				logging.Debug("Periodic scan skipped: no root folder known")
				return
			}
			root = last
		}
		result := scanner.ScanFolder(ctx, root, scan.ScanOptions{Recursive: true})
		if len(result.Errors) > 0 {
			logging.Warn("Periodic scan of %s finished with %d errors", root, len(result.Errors))
		}
	}

	runScan()
	ticker := time.NewTicker(config.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runScan()
		case <-ctx.Done():
			return
		}
	}
}

// periodicWarming runs a warmer pass every THUMBNAIL_INTERVAL. A pass that
// is refused (scan in progress) just waits for the next tick.
func periodicWarming(ctx context.Context, warmer *scan.Warmer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := warmer.Run(ctx); err != nil {
				logging.Info("Warmer pass skipped: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func handleShutdown(srv, metricsSrv *http.Server, cancel context.CancelFunc,
	scanner *scan.Scanner, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	cancel()
	scanner.Stop()
	startup.LogShutdownStep("Background work stopped")

	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStep("Collector and memory monitor stopped")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStep("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
