package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// redirectStdout points the console fallback at a pipe for the test's
// duration and returns a func yielding what was written.
func redirectStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)
	prev := osStdout
	osStdout = w
	t.Cleanup(func() { osStdout = prev })

	return func() string {
		w.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}

func TestSetup_ConsoleTarget(t *testing.T) {
	t.Run("explicit writer keeps stdout quiet", func(t *testing.T) {
		read := redirectStdout(t)
		var console bytes.Buffer

		m := NewSlogManager()
		m.Setup(&console, "info", nil)
		m.Logger().Info("snapshot published", "markers", 3)

		assert.Empty(t, read())
		assert.Contains(t, console.String(), "snapshot published")
		assert.Contains(t, console.String(), "markers=3")
	})

	t.Run("nil writer falls back to stdout", func(t *testing.T) {
		read := redirectStdout(t)

		m := NewSlogManager()
		m.Setup(nil, "info", nil)
		m.Logger().Info("session joined")

		assert.Contains(t, read(), "session joined")
	})
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("marker created")
			m.Logger().Warn("entry skipped")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "marker created"))
			assert.Equal(t, tt.wantWarn, strings.Contains(buf.String(), "entry skipped"))
		})
	}
}

func TestSetup_TimesAreUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.Logger().Info("tick")

	line := strings.SplitN(buf.String(), "\n", 2)[0]
	require.True(t, strings.HasPrefix(line, "time="), line)
	stamp := strings.Fields(line)[0]
	assert.True(t, strings.HasSuffix(stamp, "Z"), stamp)
}

func TestSetup_SecondCallReplacesSinks(t *testing.T) {
	var before, after bytes.Buffer
	m := NewSlogManager()

	m.Setup(&before, "info", nil)
	m.Setup(&after, "info", nil)
	m.Logger().Info("after reload")

	assert.NotContains(t, before.String(), "after reload")
	assert.Contains(t, after.String(), "after reload")
}

func TestSetup_GraylogGetsJSON(t *testing.T) {
	var console, gelf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&console, "info", nil, WithGraylog(&gelf))

	m.Logger().Info("sighting selected", "id", "42")

	assert.Contains(t, console.String(), "sighting selected")
	assert.Contains(t, gelf.String(), `"msg":"sighting selected"`)
	assert.Contains(t, gelf.String(), `"id":"42"`)
}

func TestSetup_ContextProviderRunsPerRecord(t *testing.T) {
	var buf bytes.Buffer
	sessions := 0
	m := NewSlogManager()
	m.Setup(&buf, "info", nil, WithContext(func() []slog.Attr {
		sessions++
		return []slog.Attr{slog.Int("sessions", sessions)}
	}))

	m.Logger().Info("published")

	// the "Logging initialized" record consumed sessions=1
	assert.Contains(t, buf.String(), "published sessions=2")
}

func TestSetup_OTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)
	m.Logger().Info("bridged")

	assert.Contains(t, buf.String(), "bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestManager_BeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Same(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warn "))
	assert.Equal(t, slog.LevelError, parseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
