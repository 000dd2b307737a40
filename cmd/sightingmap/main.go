// Command sightingmap serves the sightings API and the live channel that
// keeps mounted map widgets in sync.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sporewatch/sightingmap/internal/config"
	"github.com/sporewatch/sightingmap/internal/host"
	"github.com/sporewatch/sightingmap/internal/influx"
	"github.com/sporewatch/sightingmap/internal/logging"
	"github.com/sporewatch/sightingmap/internal/monitor"
	intOtel "github.com/sporewatch/sightingmap/internal/otel"
	"github.com/sporewatch/sightingmap/internal/storage"
	"github.com/sporewatch/sightingmap/internal/storage/factory"
)

// BuildVersion can be set at build time via ldflags
var BuildVersion = "dev"

var (
	SessionStartTime = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider
)

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.FileName+" and .env")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "sightingmap: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		if !config.IsNotFound(err) {
			return err
		}
		Logger.Warn("No config file, using defaults", "dir", configDir)
	}

	logFile, err := logging.OpenLogFile(logging.LogFilePath(config.GetString("logsDir"), logging.ServiceName, SessionStartTime))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	var hub *host.Hub
	setupLogging(ctx, logFile, func() []slog.Attr {
		if hub == nil {
			return nil
		}
		return hub.LogAttrs()
	})
	defer flushTelemetry()

	Logger.Info("Starting sightingmap", "version", BuildVersion, "log", logFile.Name())

	zlog := logging.NewZerolog(config.GetString("logLevel"), logFile)

	storageCfg := config.GetStorageConfig()
	store, err := factory.NewStore(storageCfg, zlog)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer closeStore(store)
	Logger.Info("Storage ready", "type", storageCfg.Type)

	influxManager, recorder := setupInflux(ctx, zlog)
	if influxManager != nil {
		defer influxManager.Close()
	}

	hostCfg := config.GetHostConfig()
	hub = host.NewHub(store, recorder, host.Config{
		CSRFToken:      config.GetLiveConfig().CSRFToken,
		AllowedOrigins: hostCfg.AllowedOrigins,
		FlushInterval:  hostCfg.FlushInterval,
	}, Logger)
	if err := hub.Restore(ctx); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	statusMonitor := monitor.NewService(monitor.Dependencies{
		Source:     hub,
		Recorder:   recorder,
		Logger:     Logger,
		StatusPath: hostCfg.StatusFile,
		Interval:   hostCfg.StatusInterval,
	})
	if err := statusMonitor.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}
	defer statusMonitor.Stop()

	flushDone := make(chan struct{})
	flushCtx, stopFlush := context.WithCancel(context.Background())
	go func() {
		hub.RunFlusher(flushCtx)
		close(flushDone)
	}()

	srv := &http.Server{
		Addr:              hostCfg.Addr,
		Handler:           host.NewRouter(hub, store, Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		Logger.Info("Listening", "addr", hostCfg.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		Logger.Info("Shutting down")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		Logger.Warn("HTTP shutdown incomplete", "error", serr)
	}

	stopFlush()
	<-flushDone

	return err
}

// setupLogging re-installs logging with the log file, the optional OTel
// bridge and the optional Graylog sink.
func setupLogging(ctx context.Context, logFile io.Writer, attrs logging.ContextProvider) {
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		OTelProvider, err = intOtel.New(ctx, intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: BuildVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	opts := []logging.Option{logging.WithContext(attrs)}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			opts = append(opts, logging.WithGraylog(gw))
		}
	}

	SlogManager.Setup(io.MultiWriter(os.Stdout, logFile), config.GetString("logLevel"), otelLogProvider, opts...)
	Logger = SlogManager.Logger()
}

func setupInflux(ctx context.Context, zlog zerolog.Logger) (*influx.Manager, *influx.Recorder) {
	cfg := config.GetInfluxConfig()
	backupPath := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("influx_backup_%s.log.gzip", SessionStartTime.Format("20060102_150405")))

	m := influx.NewManager(zlog, cfg, backupPath)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Error("Failed to set up InfluxDB", "error", err)
		}
		return nil, nil
	}
	Logger.Info("InfluxDB ready", "bucket", cfg.Bucket, "backup", !m.IsValid)
	return m, influx.NewRecorder(m, cfg.Bucket)
}

func closeStore(store storage.Store) {
	if err := store.Close(); err != nil {
		Logger.Error("Failed to close store", "error", err)
	}
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown otel: %v\n", err)
		}
	}
}
