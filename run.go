package pentagon

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexxia-ai/pentagon/document"
	"github.com/oklog/ulid/v2"
)

// Task is one request to the pipeline.
type Task struct {
	Text      string
	Documents []*document.Document
	// Requester identifies the caller for lockout accounting. Empty disables lockout.
	Requester string
}

// Status is the terminal outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
)

// State is a position in the run state machine:
// idle -> guarding -> stage:<id>... -> done, with blocked reachable from guarding
// and failed reachable from any stage.
type State string

const (
	StateIdle     State = "idle"
	StateGuarding State = "guarding"
	StateDone     State = "done"
	StateBlocked  State = "blocked"
	StateFailed   State = "failed"
)

// StageState is the state of a run while stage id executes.
func StageState(id StageID) State {
	return State("stage:" + string(id))
}

// StageResult is the output text of one stage.
type StageResult struct {
	Stage StageID
	Role  string
	Label string
	Text  string
}

// Run is the record of one pipeline execution. It is never mutated after Execute returns.
type Run struct {
	ID     string
	CaseID string
	Task   Task
	// Context is the concatenated text of the task's documents.
	Context string
	// Results are in execution order, which is dependency order.
	Results []StageResult
	// Inputs holds the exact text each executed stage received.
	Inputs map[StageID]string

	Status      Status
	State       State
	Transitions []State

	FailedStage   StageID
	BlockedPhrase string
	Err           error

	StartedAt  time.Time
	FinishedAt time.Time
}

func newRun(task Task, now time.Time) *Run {
	r := &Run{
		ID:        ulid.Make().String(),
		CaseID:    NewCaseID(),
		Task:      task,
		Inputs:    make(map[StageID]string),
		StartedAt: now,
	}
	r.transition(StateIdle)
	return r
}

// NewCaseID returns a short upper-case identifier for exported documents.
func NewCaseID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (r *Run) transition(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// Result returns the output of a stage if it ran to completion.
func (r *Run) Result(id StageID) (StageResult, bool) {
	for _, res := range r.Results {
		if res.Stage == id {
			return res, true
		}
	}
	return StageResult{}, false
}

// Input returns the text sent to a stage.
func (r *Run) Input(id StageID) string {
	return r.Inputs[id]
}

// Verdict returns the output of the final stage of a completed run.
func (r *Run) Verdict() string {
	if r.Status != StatusCompleted || len(r.Results) == 0 {
		return ""
	}
	return r.Results[len(r.Results)-1].Text
}

func (r *Run) Completed() bool { return r.Status == StatusCompleted }
func (r *Run) Blocked() bool   { return r.Status == StatusBlocked }
func (r *Run) Failed() bool    { return r.Status == StatusFailed }

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
