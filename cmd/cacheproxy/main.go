// Command cacheproxy runs the caching HTTP forward proxy: it fetches
// target URLs from origin, serves repeat requests for the same URL from
// an in-memory bounded LRU cache, and exposes a Prometheus /metrics side
// listener alongside the proxy's own routes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vshong/cacheproxy/internal/cache"
	"github.com/vshong/cacheproxy/internal/config"
	"github.com/vshong/cacheproxy/internal/logging"
	"github.com/vshong/cacheproxy/internal/metrics"
	"github.com/vshong/cacheproxy/internal/observer"
	"github.com/vshong/cacheproxy/internal/pipeline"
	"github.com/vshong/cacheproxy/internal/server"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cacheproxy",
	Short: "Run the caching HTTP forward proxy",
	Long: "Run a caching HTTP forward proxy that fetches target URLs from " +
		"origin and serves repeat requests from an in-memory bounded LRU cache.",
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.Bool("debug", false, "enable debug logging")
	flags.Int("port", config.DefaultPort, "proxy listen port")
	flags.Int64("cache-size", config.DefaultCacheSizeBytes, "LRU cache capacity in bytes")
	flags.Int64("max-element-size", config.DefaultMaxElementBytes, "per-entry admission ceiling in bytes")
	flags.String("metrics-addr", config.DefaultMetricsAddr, "address for the /metrics side listener")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Errorf("cacheproxy exited with error: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Configure(cfg.Debug, cfg.LogFile)
	logging.Infof("starting cacheproxy on port %d (cache_size=%d max_element_size=%d)",
		cfg.Port, cfg.CacheSizeBytes, cfg.MaxElementSizeBytes)

	c := cache.New(cfg.CacheSizeBytes, cfg.MaxElementSizeBytes)
	client := pipeline.NewHTTPClient(cfg.RequestTimeout())
	pl := pipeline.New(c, client)
	srv := server.New(cfg, c, pl)

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return fmt.Errorf("start proxy server: %w", err)
	}

	stopReporter := make(chan struct{})
	go observer.StartStatsReporter(stopReporter, c, cfg.CacheStatsInterval())

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			logging.Errorf("metrics server error: %v", err)
		}
	}()

	waitForSignal()

	close(stopReporter)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewDefault()
	if configFile != "" {
		loaded, err := config.FromYAMLFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cache-size") {
		cfg.CacheSizeBytes, _ = flags.GetInt64("cache-size")
	}
	if flags.Changed("max-element-size") {
		cfg.MaxElementSizeBytes, _ = flags.GetInt64("max-element-size")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	return cfg, nil
}

func waitForSignal() {
	var wg sync.WaitGroup
	wg.Add(1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		wg.Done()
	}()
	wg.Wait()
}
