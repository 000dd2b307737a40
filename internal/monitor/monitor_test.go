package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	sessions, pending int
	lastFlush         time.Duration
}

func (f fakeSource) SessionCount() int                { return f.sessions }
func (f fakeSource) PendingSelections() int           { return f.pending }
func (f fakeSource) LastFlushDuration() time.Duration { return f.lastFlush }

type fakeRecorder struct {
	mu      sync.Mutex
	samples []int
}

func (r *fakeRecorder) RecordStatus(_ time.Time, sessions, _ int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sessions)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestGetStatus(t *testing.T) {
	s := NewService(Dependencies{Source: fakeSource{sessions: 2, pending: 5, lastFlush: 2500 * time.Microsecond}})

	status := s.GetStatus()
	assert.Equal(t, 2, status.Sessions)
	assert.Equal(t, 5, status.PendingSelections)
	assert.InDelta(t, 2.5, status.LastFlushDurationMs, 0.0001)
	assert.False(t, status.Time.IsZero())
}

func TestService_WritesStatusFileAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	rec := &fakeRecorder{}
	s := NewService(Dependencies{
		Source:     fakeSource{sessions: 3, pending: 1},
		Recorder:   rec,
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var status Status
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, 3, status.Sessions)
	assert.Equal(t, 1, status.PendingSelections)
}

func TestService_StartTwiceAndStopTwice(t *testing.T) {
	s := NewService(Dependencies{Source: fakeSource{}, Interval: time.Hour})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestService_StartBadPath(t *testing.T) {
	s := NewService(Dependencies{
		Source:     fakeSource{},
		StatusPath: filepath.Join(t.TempDir(), "missing", "status.json"),
	})

	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
