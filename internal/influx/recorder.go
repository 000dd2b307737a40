package influx

import (
	"context"
	"errors"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sporewatch/sightingmap/pkg/core"
)

const (
	// MeasurementSelection holds one point per select_sighting event.
	MeasurementSelection = "sighting_selection"
	// MeasurementSnapshot holds one point per published snapshot.
	MeasurementSnapshot = "sighting_snapshot"
	// MeasurementStatus holds periodic host status samples.
	MeasurementStatus = "host_status"
)

// PointWriter is the part of Manager the Recorder needs.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Recorder turns domain events into InfluxDB points. A nil writer makes
// every call a no-op.
type Recorder struct {
	writer PointWriter
	bucket string
}

// NewRecorder creates a recorder writing to bucket.
func NewRecorder(w PointWriter, bucket string) *Recorder {
	return &Recorder{writer: w, bucket: bucket}
}

// Enabled reports whether points are written anywhere.
func (r *Recorder) Enabled() bool {
	return r != nil && r.writer != nil
}

// SelectionPoint builds the point for one selection.
func SelectionPoint(s core.Selection) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementSelection,
		map[string]string{
			"sighting_id": s.SightingID.String(),
			"session_id":  s.SessionID,
		},
		map[string]interface{}{
			"count": 1,
		},
		s.SelectedAt,
	)
}

// SnapshotPoint builds the point for a published snapshot.
func SnapshotPoint(takenAt time.Time, markers int) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementSnapshot,
		nil,
		map[string]interface{}{
			"markers": markers,
		},
		takenAt,
	)
}

// RecordSelections writes one point per selection.
func (r *Recorder) RecordSelections(ctx context.Context, selections []core.Selection) error {
	if !r.Enabled() {
		return nil
	}
	var errs []error
	for _, s := range selections {
		if err := ctx.Err(); err != nil {
			return err
		}
		errs = append(errs, r.writer.WritePoint(r.bucket, SelectionPoint(s)))
	}
	return errors.Join(errs...)
}

// RecordSnapshot writes the size of a published snapshot.
func (r *Recorder) RecordSnapshot(takenAt time.Time, markers int) error {
	if !r.Enabled() {
		return nil
	}
	return r.writer.WritePoint(r.bucket, SnapshotPoint(takenAt, markers))
}

// StatusPoint builds the point for one host status sample.
func StatusPoint(at time.Time, sessions, pending int, lastFlush time.Duration) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementStatus,
		nil,
		map[string]interface{}{
			"sessions":           sessions,
			"pending_selections": pending,
			"last_flush_ms":      float64(lastFlush.Microseconds()) / 1000,
		},
		at,
	)
}

// RecordStatus writes one host status sample.
func (r *Recorder) RecordStatus(at time.Time, sessions, pending int, lastFlush time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	return r.writer.WritePoint(r.bucket, StatusPoint(at, sessions, pending, lastFlush))
}
