package fake

import (
	"context"
	"sync"

	"vigil/internal/escalate"
)

var _ escalate.Remediator = (*Remediator)(nil)

// Remediator records remediation calls and returns configured results.
type Remediator struct {
	CallRecorder

	mu       sync.Mutex
	healthy  int
	restErr  error
	swErr    error
	scaleErr error
}

// NewRemediator creates a Remediator reporting the given healthy instance
// count.
func NewRemediator(healthy int) *Remediator {
	return &Remediator{healthy: healthy}
}

// SetHealthy changes the reported healthy instance count.
func (r *Remediator) SetHealthy(n int) {
	r.mu.Lock()
	r.healthy = n
	r.mu.Unlock()
}

// FailRestarts makes Restart return err until FailRestarts(nil).
func (r *Remediator) FailRestarts(err error) {
	r.mu.Lock()
	r.restErr = err
	r.mu.Unlock()
}

// FailSwitches makes SwitchEnvironment return err until FailSwitches(nil).
func (r *Remediator) FailSwitches(err error) {
	r.mu.Lock()
	r.swErr = err
	r.mu.Unlock()
}

func (r *Remediator) Restart(ctx context.Context, teamID, mode string) error {
	r.record("Restart", teamID, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restErr
}

func (r *Remediator) SwitchEnvironment(ctx context.Context, teamID, target string) error {
	r.record("SwitchEnvironment", teamID, target)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swErr
}

func (r *Remediator) Scale(ctx context.Context, teamID string, delta int) error {
	r.record("Scale", teamID, delta)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scaleErr
}

func (r *Remediator) HealthyInstances(ctx context.Context, teamID string) (int, error) {
	r.record("HealthyInstances", teamID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy, nil
}
