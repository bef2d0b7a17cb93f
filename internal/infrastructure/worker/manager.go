// Package worker runs invoice extraction in the background and re-queues
// extractions that a previous process left unfinished.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background component owned by a WorkerManager
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager starts workers in registration order and stops them in reverse.
// A worker that fails to start is left out of the stop sequence.
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	running []Worker
	active  bool
	cancel  context.CancelFunc
}

// NewWorkerManager creates an empty manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register appends w; workers registered after StartAll are not started
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	m.workers = append(m.workers, w)
	m.mu.Unlock()
	m.logger.Debug("Worker registered", zap.String("worker_name", w.Name()))
}

// StartAll starts every registered worker under a context that StopAll cancels.
// Start failures are joined and returned after the remaining workers are up.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return errors.New("workers already running")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.active = true
	m.running = nil

	var errs []error
	for _, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Failed to start worker", zap.String("worker_name", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		m.running = append(m.running, w)
	}

	m.logger.Info("Workers started",
		zap.Int("started", len(m.running)),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// StopAll stops the running workers, last started first. Calling it on a stopped
// manager is a no-op.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return nil
	}
	m.active = false

	var errs []error
	for i := len(m.running) - 1; i >= 0; i-- {
		if err := m.running[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.running[i].Name(), err))
		}
	}
	m.running = nil
	m.cancel()

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Some workers failed to stop", zap.Error(err))
		return err
	}
	m.logger.Info("All workers stopped")
	return nil
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// IsRunning reports whether StartAll has run without a matching StopAll
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}
