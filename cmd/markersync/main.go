// Command markersync mounts a headless sightings map widget against a
// running host and keeps it in sync over the live channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sporewatch/sightingmap/internal/api"
	"github.com/sporewatch/sightingmap/internal/config"
	"github.com/sporewatch/sightingmap/internal/dispatcher"
	"github.com/sporewatch/sightingmap/internal/livesocket"
	"github.com/sporewatch/sightingmap/internal/logging"
	"github.com/sporewatch/sightingmap/internal/mapview"
	"github.com/sporewatch/sightingmap/internal/mapview/scene"
	"github.com/sporewatch/sightingmap/internal/widget"
	"github.com/sporewatch/sightingmap/pkg/core"
)

const serviceName = "markersync"

var (
	SessionStartTime = time.Now()

	SlogManager *logging.SlogManager
	Logger      *slog.Logger
)

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.FileName+" and .env")
	containerID := flag.String("container", "sightings-map", "id of the container the view is mounted into")
	seedPath := flag.String("seed", "", "JSON array of sightings to add to the host before mounting")
	flag.Parse()

	if err := run(*configDir, *containerID, *seedPath); err != nil {
		fmt.Fprintf(os.Stderr, "markersync: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir, containerID, seedPath string) error {
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

	logFile, err := logging.OpenLogFile(logging.LogFilePath(config.GetString("logsDir"), serviceName, SessionStartTime))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	// the provider must not take the synchronizer lock, which is held while it logs
	var view *scene.View
	SlogManager.Setup(io.MultiWriter(os.Stdout, logFile), config.GetString("logLevel"), nil,
		logging.WithContext(func() []slog.Attr {
			if view == nil {
				return nil
			}
			return []slog.Attr{slog.Int("attached", len(view.Markers()))}
		}))
	Logger = SlogManager.Logger()

	liveCfg := config.GetLiveConfig()
	viewCfg := config.GetViewConfig()

	host := api.New(liveCfg.APIURL)
	sessions, err := host.Healthcheck(ctx)
	if err != nil {
		return fmt.Errorf("host is offline: %w", err)
	}
	Logger.Info("Host is online", "url", liveCfg.APIURL, "sessions", sessions)

	if seedPath != "" {
		if err := seed(ctx, host, seedPath); err != nil {
			return err
		}
	}

	raw, err := host.MountPayload(ctx)
	if err != nil {
		return err
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(config.GetString("logLevel"), logFile)))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	client := livesocket.New(livesocket.Config{
		URL:       liveCfg.URL,
		CSRFToken: liveCfg.CSRFToken,
	}, d, nil, Logger)

	renderer := scene.New(scene.Config{
		WidthPx:  viewCfg.Width,
		HeightPx: viewCfg.Height,
		MaxZoom:  viewCfg.MaxZoom,
	})
	syncer, err := widget.Mount(mapview.Container{
		ID:      containerID,
		Dataset: map[string]string{widget.DatasetKey: string(raw)},
	}, widget.Dependencies{Renderer: renderer, Pusher: client, Logger: Logger})
	if err != nil {
		client.Close()
		return err
	}
	view = renderer.LastView()

	loop := widget.NewLoop(syncer, 0)
	loop.AfterHandle(func(msg widget.Message, err error) {
		if _, ok := msg.(widget.SnapshotReceived); !ok || err != nil {
			return
		}
		center, zoom := view.Viewport()
		Logger.Info("Markers reconciled", "markers", syncer.MarkerCount(), "center", center, "zoom", zoom)
		if liveCfg.GeoJSONPath != "" {
			if err := writeGeoJSON(view, liveCfg.GeoJSONPath); err != nil {
				Logger.Warn("Failed to write GeoJSON", "path", liveCfg.GeoJSONPath, "error", err)
			}
		}
	})
	client.SetSink(loop)
	client.OnReconnect(func(attempt int) {
		Logger.Info("Live channel reconnected", "attempt", attempt)
	})
	client.OnGiveUp(func() {
		Logger.Error("Live channel lost, stopping")
		stop()
	})

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(context.Background()) }()

	if err := client.Connect(); err != nil {
		loop.Stop()
		<-loopDone
		client.Close()
		return fmt.Errorf("connect live channel: %w", err)
	}

	<-ctx.Done()
	Logger.Info("Unmounting widget")

	if err := loop.Send(widget.Unmount{}); err != nil {
		Logger.Warn("Unmount not queued", "error", err)
		loop.Stop()
	}
	if err := <-loopDone; err != nil {
		Logger.Warn("Widget loop stopped with error", "error", err)
	}
	if err := client.Close(); err != nil {
		Logger.Debug("Live channel close", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return SlogManager.Flush(flushCtx)
}

// seed adds every valid sighting in path. Ids the host already has are
// skipped.
func seed(ctx context.Context, host *api.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	sightings, skipped, err := core.ParseSightings(data)
	if err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, skip := range skipped {
		Logger.Warn("Skipping malformed seed entry", "error", skip)
	}

	added := 0
	for _, s := range sightings {
		err := host.AddSighting(ctx, s)
		switch {
		case err == nil:
			added++
		case errors.Is(err, api.ErrDuplicate):
			Logger.Debug("Seed sighting already present", "id", s.ID)
		default:
			return err
		}
	}
	Logger.Info("Seeded sightings", "added", added, "total", len(sightings))
	return nil
}

func writeGeoJSON(view *scene.View, path string) error {
	data, err := view.GeoJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
