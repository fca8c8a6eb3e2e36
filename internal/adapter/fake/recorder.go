package fake

import (
	"sync"
	"time"

	"vigil/internal/engine"
	"vigil/internal/health"
	"vigil/internal/ntp"
)

var _ engine.Recorder = (*Recorder)(nil)

// SavedAttempt is one persisted healing attempt.
type SavedAttempt struct {
	TeamID  string
	At      time.Time
	Action  string
	Level   string
	Success bool
}

// SavedBreakerState is one persisted breaker snapshot.
type SavedBreakerState struct {
	TeamID              string
	State               string
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Recorder keeps persisted records in memory for assertion in tests.
type Recorder struct {
	mu            sync.Mutex
	assessments   []health.Assessment
	attempts      []SavedAttempt
	breakerStates []SavedBreakerState
	err           error
}

// Fail makes every Save method return err until Fail(nil).
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Recorder) SaveAssessment(a health.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.assessments = append(r.assessments, a)
	return nil
}

func (r *Recorder) SaveAttempt(teamID string, at time.Time, action, level string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.attempts = append(r.attempts, SavedAttempt{TeamID: teamID, At: at, Action: action, Level: level, Success: success})
	return nil
}

func (r *Recorder) SaveBreakerState(teamID, state string, consecutiveFailures int, openedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.breakerStates = append(r.breakerStates, SavedBreakerState{
		TeamID:              teamID,
		State:               state,
		ConsecutiveFailures: consecutiveFailures,
		OpenedAt:            openedAt,
	})
	return nil
}

// Assessments returns persisted assessments, optionally filtered by team.
func (r *Recorder) Assessments(teamID string) []health.Assessment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []health.Assessment
	for _, a := range r.assessments {
		if teamID == "" || a.TeamID == teamID {
			out = append(out, a)
		}
	}
	return out
}

// Attempts returns all persisted healing attempts.
func (r *Recorder) Attempts() []SavedAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SavedAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// BreakerStates returns all persisted breaker snapshots.
func (r *Recorder) BreakerStates() []SavedBreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SavedBreakerState, len(r.breakerStates))
	copy(out, r.breakerStates)
	return out
}

var _ engine.ClockSource = (*ClockSource)(nil)

// ClockSource reports a fixed NTP status.
type ClockSource struct {
	mu     sync.Mutex
	status ntp.Status
}

// SetStatus changes the reported status.
func (c *ClockSource) SetStatus(s ntp.Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *ClockSource) Status() ntp.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
