package jobs

import (
	"errors"
	"fmt"
	"sync"

	"pitch-shifter/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single allowed active job and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start registers a new job and moves it to classifying state.
func (m *Manager) Start(job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	job.Status = domain.JobStatusClassifying
	m.current = job
	return nil
}

// Transition validates and applies state transitions for current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// SetKind records the classified media kind on the active job.
func (m *Manager) SetKind(kind domain.MediaKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Kind = kind
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Cancel moves an active job to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current.Status = domain.JobStatusCancelled
	return nil
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusClassifying,
		domain.JobStatusExtracting,
		domain.JobStatusLoading,
		domain.JobStatusShifting,
		domain.JobStatusWriting,
		domain.JobStatusRemuxing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
// Extraction only happens for video sources, so classifying may skip
// straight to loading; remuxing is likewise video-only, so writing may
// terminate at done.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusClassifying
	case domain.JobStatusClassifying:
		return to == domain.JobStatusExtracting || to == domain.JobStatusLoading ||
			to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusExtracting:
		return to == domain.JobStatusLoading || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusLoading:
		return to == domain.JobStatusShifting || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusShifting:
		return to == domain.JobStatusWriting || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusWriting:
		return to == domain.JobStatusRemuxing || to == domain.JobStatusDone ||
			to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusRemuxing:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusDone, domain.JobStatusFailed, domain.JobStatusCancelled:
		return to == domain.JobStatusClassifying || to == domain.JobStatusIdle
	default:
		return false
	}
}
