// Command strec generates a dataset of spatiotemporal exploration
// episodes: it drives an explorer through its environment, buffers each
// episode, and persists the valid ones as JSON trajectories, MP4 videos
// and deduplicated top-down occupancy maps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/stexplore/strec/internal/catalog"
	"github.com/stexplore/strec/internal/config"
	"github.com/stexplore/strec/internal/influx"
	"github.com/stexplore/strec/internal/lifecycle"
	"github.com/stexplore/strec/internal/logging"
	intOtel "github.com/stexplore/strec/internal/otel"
	"github.com/stexplore/strec/internal/persist"
	_ "github.com/stexplore/strec/internal/sim"
	"github.com/stexplore/strec/internal/video"
)

// Version can be set at build time via ldflags.
var Version string = "0.0.1"

var sessionStartTime = time.Now()

func main() {
	configDir := flag.String("config", ".", "directory containing strec.cfg.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("strec " + Version)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "strec: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	if err := config.Load(configDir); err != nil {
		// Defaults are already installed; a missing config file is fine.
		fmt.Fprintf(os.Stderr, "strec: %v, continuing with defaults\n", err)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, sessionStartTime),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelProvider, otelCleanup, err := setupOTel(logsDir)
	if err != nil {
		return err
	}
	defer otelCleanup()

	logManager := logging.NewManager()
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	logManager.Setup(logFile, config.GetString("logLevel"), otelLogProvider)
	logger := logManager.Logger()
	slog.SetDefault(logger)

	logger.Info("starting episode generation",
		"version", Version,
		"outputDir", config.GetString("outputDir"),
		"numEpisodes", config.GetInt("numEpisodes"),
	)

	videoCfg := config.GetVideoConfig()
	encoder := video.NewFFmpeg(videoCfg.FFmpegPath, videoCfg.Framerate, logger)

	persister := persist.New(
		config.GetString("outputDir"),
		config.GetInt("numEpisodes"),
		encoder,
		logger,
	)

	reporters, reporterCleanup, err := setupReporters(logsDir)
	if err != nil {
		return err
	}
	defer reporterCleanup()

	explorerType := config.GetString("explorer.type")
	explorer, err := lifecycle.NewExplorer(explorerType, config.ExplorerSettings())
	if err != nil {
		return fmt.Errorf("creating explorer: %w", err)
	}
	logger.Info("explorer ready", "type", explorerType)

	controller, err := lifecycle.NewController(explorer, persister, logger, reporters...)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, shutting down")
		err = nil
	}
	if err != nil {
		logger.Error("episode generation failed", "error", err)
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if flushErr := logManager.Flush(flushCtx); flushErr != nil {
		fmt.Fprintf(os.Stderr, "strec: flushing logs: %v\n", flushErr)
	}
	return nil
}

// setupOTel builds the OTel provider when enabled. The returned cleanup
// is always safe to call.
func setupOTel(logsDir string) (*intOtel.Provider, func(), error) {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil, func() {}, nil
	}

	otelLogFile, err := os.OpenFile(
		filepath.Join(logsDir, "strec.otel.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening otel log file: %w", err)
	}

	provider, err := intOtel.New(intOtel.Config{
		Enabled:      true,
		ServiceName:  "strec",
		BatchTimeout: 5 * time.Second,
		LogWriter:    otelLogFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		otelLogFile.Close()
		return nil, func() {}, fmt.Errorf("initializing otel: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "strec: otel shutdown: %v\n", err)
		}
		otelLogFile.Close()
	}
	return provider, cleanup, nil
}

// setupReporters wires the optional episode catalog and InfluxDB metric
// sinks. Both are advisory: their failures never stop generation, so a
// reporter that cannot connect is dropped with a log line.
func setupReporters(logsDir string) ([]lifecycle.Reporter, func(), error) {
	zlog := logging.NewZerolog(
		config.GetString("logLevel"),
		config.GetBool("graylog.enabled"),
		config.GetString("graylog.address"),
	)

	var reporters []lifecycle.Reporter
	var closers []func()

	if catalogCfg := config.GetCatalogConfig(); catalogCfg.Enabled {
		cat := catalog.NewManager(zlog, catalogCfg.SqlitePath)
		if err := cat.Connect(); err != nil {
			zlog.Warn().Err(err).Msg("Episode catalog unavailable, continuing without it")
		} else {
			reporters = append(reporters, cat)
			closers = append(closers, func() { cat.Close() })
		}
	}

	if config.GetBool("influx.enabled") {
		rep := influx.NewReporter(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := rep.Connect(); err != nil {
			zlog.Warn().Err(err).Msg("InfluxDB reporter unavailable, continuing without it")
		} else {
			reporters = append(reporters, rep)
			closers = append(closers, func() {
				if err := rep.Close(); err != nil {
					zlog.Warn().Err(err).Msg("Error closing InfluxDB reporter")
				}
			})
		}
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return reporters, cleanup, nil
}
