package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// Source is the part of the hub the monitor samples.
type Source interface {
	SessionCount() int
	PendingSelections() int
	LastFlushDuration() time.Duration
}

// StatusRecorder receives every sample. *influx.Recorder satisfies it.
type StatusRecorder interface {
	RecordStatus(at time.Time, sessions, pending int, lastFlush time.Duration) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     Source
	Recorder   StatusRecorder
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration
}

// Status is one sample of host state.
type Status struct {
	Time                time.Time `json:"time"`
	Sessions            int       `json:"sessions"`
	PendingSelections   int       `json:"pendingSelections"`
	LastFlushDurationMs float64   `json:"lastFlushDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the source once.
func (s *Service) GetStatus() Status {
	return Status{
		Time:                time.Now(),
		Sessions:            s.deps.Source.SessionCount(),
		PendingSelections:   s.deps.Source.PendingSelections(),
		LastFlushDurationMs: float64(s.deps.Source.LastFlushDuration().Microseconds()) / 1000,
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			return fmt.Errorf("create status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(statusFile, s.stopChan, s.done)
	return nil
}

func (s *Service) run(statusFile *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()
	if statusFile != nil {
		defer statusFile.Close()
	}

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			status := s.GetStatus()

			if statusFile != nil {
				if err := writeStatus(statusFile, status); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}

			if s.deps.Recorder != nil {
				lastFlush := s.deps.Source.LastFlushDuration()
				if err := s.deps.Recorder.RecordStatus(status.Time, status.Sessions, status.PendingSelections, lastFlush); err != nil {
					logger.Warn("Error recording status", "error", err)
				}
			}
		}
	}
}

func writeStatus(f *os.File, status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
