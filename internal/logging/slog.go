package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this process in OTel and Graylog records.
const ServiceName = "sightingmap"

var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional OTel and Graylog output.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// Option adds an optional sink or decoration to Setup.
type Option func(*setupConfig)

type setupConfig struct {
	graylog io.Writer
	context ContextProvider
}

// WithGraylog sends JSON records to w, normally a *gelf.Writer.
func WithGraylog(w io.Writer) Option {
	return func(c *setupConfig) {
		c.graylog = w
	}
}

// WithContext attaches attributes from provider to every record.
func WithContext(provider ContextProvider) Option {
	return func(c *setupConfig) {
		c.context = provider
	}
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel maps a config level to slog, defaulting to info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC 3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey || a.Value.Kind() != slog.KindTime {
		return a
	}
	return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339))
}

// Setup replaces the logger. Text records go to console, or to stdout when
// console is nil. Graylog gets one JSON record per GELF message, and a
// non-nil provider adds the OTel bridge.
func (m *SlogManager) Setup(console io.Writer, level string, provider *sdklog.LoggerProvider, opts ...Option) {
	var cfg setupConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if console == nil {
		console = osStdout
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}
	sinks := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}
	if cfg.graylog != nil {
		sinks = append(sinks, slog.NewJSONHandler(cfg.graylog, handlerOpts))
	}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(sinks...)
	if cfg.context != nil {
		handler = NewContextHandler(handler, cfg.context)
	}

	m.logProvider = provider
	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
