package host

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporewatch/sightingmap/internal/dispatcher"
	"github.com/sporewatch/sightingmap/internal/livesocket"
	"github.com/sporewatch/sightingmap/internal/logging"
	"github.com/sporewatch/sightingmap/internal/mapview"
	"github.com/sporewatch/sightingmap/internal/mapview/scene"
	"github.com/sporewatch/sightingmap/internal/widget"
	"github.com/sporewatch/sightingmap/pkg/core"
)

// TestWidgetFollowsHost mounts a widget from the HTTP payload, joins the
// live channel and checks snapshots and clicks flow both ways.
func TestWidgetFollowsHost(t *testing.T) {
	h := newTestHost(t, nil)
	ctx := context.Background()
	for _, s := range sampleSightings() {
		require.NoError(t, h.store.AddSighting(ctx, s))
	}
	require.NoError(t, h.hub.Restore(ctx))

	resp, err := http.Get(h.URL + "/api/sightings")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	client := livesocket.New(livesocket.Config{
		URL:              h.liveURL(""),
		CSRFToken:        testToken,
		ReconnectBackoff: 10 * time.Millisecond,
	}, d, nil, nil)
	t.Cleanup(func() { client.Close() })

	renderer := scene.New(scene.DefaultConfig)
	syncer, err := widget.Mount(mapview.Container{
		ID:      "sightings-map",
		Dataset: map[string]string{widget.DatasetKey: string(raw)},
	}, widget.Dependencies{Renderer: renderer, Pusher: client})
	require.NoError(t, err)
	view := renderer.LastView()
	assert.Len(t, view.Markers(), 2)

	loop := widget.NewLoop(syncer, 0)
	client.SetSink(loop)
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.NoError(t, client.Connect())

	resp, err = http.Post(h.URL+"/api/sightings", "application/json",
		strings.NewReader(`{"id":"3","lat":-37.70,"lng":144.80,"fungi_name":"Pycnoporus coccineus"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool { return len(view.Markers()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.SightingID("3"), syncer.Markers()[2].ID)

	require.NoError(t, view.Click("1"))
	require.Eventually(t, func() bool { return h.hub.PendingSelections() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.hub.FlushSelections(ctx))

	n, err := h.store.CountSelections(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, loop.Send(widget.Unmount{}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("widget loop did not stop")
	}
	assert.True(t, view.Closed())
	assert.Empty(t, view.Markers())
}
