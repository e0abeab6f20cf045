// Package progress keeps the step/subtask snapshot of a running session.
package progress

import (
	"slices"
	"sync"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
)

// Tracker guards a domain.Progress value. Updates overwrite the snapshot
// wholesale; step ordering is the caller's concern.
type Tracker struct {
	mu    sync.RWMutex
	state domain.Progress
}

// NewTracker returns a tracker for a pipeline of maxSteps steps.
func NewTracker(maxSteps int) *Tracker {
	t := &Tracker{}
	t.Reset(maxSteps)
	return t
}

// Reset puts the tracker back to its initial state.
func (t *Tracker) Reset(maxSteps int) {
	t.mu.Lock()
	t.state = domain.Progress{
		MaxSteps: maxSteps,
		StepName: "Initializing",
		Subtasks: []string{},
	}
	t.mu.Unlock()
}

// UpdateStep replaces the current step. The analyzing counter is kept.
func (t *Tracker) UpdateStep(step int, name, details string, subtasks []string, completed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if subtasks == nil {
		subtasks = []string{}
	}
	t.state = domain.Progress{
		CurrentStep:       step,
		MaxSteps:          t.state.MaxSteps,
		StepName:          name,
		StepDetails:       details,
		Subtasks:          slices.Clone(subtasks),
		CompletedSubtasks: completed,
		AnalyzingCount:    t.state.AnalyzingCount,
	}
}

// SetCompleted sets the completed subtask count of the current step.
func (t *Tracker) SetCompleted(completed float64) {
	t.mu.Lock()
	t.state.CompletedSubtasks = completed
	t.mu.Unlock()
}

// SetDetails replaces the free-form detail line.
func (t *Tracker) SetDetails(details string) {
	t.mu.Lock()
	t.state.StepDetails = details
	t.mu.Unlock()
}

// CompleteCurrentStep marks every subtask of the current step as done.
func (t *Tracker) CompleteCurrentStep() {
	t.mu.Lock()
	t.state.CompletedSubtasks = float64(len(t.state.Subtasks))
	t.mu.Unlock()
}

// AddSubtask appends a subtask to the current step.
func (t *Tracker) AddSubtask(name string) {
	t.mu.Lock()
	t.state.Subtasks = append(t.state.Subtasks, name)
	t.mu.Unlock()
}

// IncrementAnalyzing bumps the number of pages under analysis.
func (t *Tracker) IncrementAnalyzing(n int) {
	t.mu.Lock()
	t.state.AnalyzingCount += n
	t.mu.Unlock()
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() domain.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}

// Percent returns overall completion in [0,100], counting finished steps and
// the fraction of the current one.
func Percent(p domain.Progress) float64 {
	if p.MaxSteps <= 0 {
		return 0
	}
	done := float64(max(p.CurrentStep-1, 0))
	if n := len(p.Subtasks); n > 0 {
		done += min(p.CompletedSubtasks/float64(n), 1)
	}
	return min(100, done/float64(p.MaxSteps)*100)
}
