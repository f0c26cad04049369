package pentagon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nexxia-ai/pentagon/alert"
	"github.com/nexxia-ai/pentagon/document"
	"github.com/nexxia-ai/pentagon/event"
	"github.com/nexxia-ai/pentagon/guard"
)

// BlockedMessage is shown to users when a run is rejected by the guard.
const BlockedMessage = "Security protocol triggered: the request was rejected and the incident has been reported."

// Observer receives run events synchronously, in order.
type Observer func(event.Event)

// Pipeline runs the staged chain over a task. A Pipeline is safe for concurrent
// Execute calls provided its Executor is; runs share no state except the lockout table.
type Pipeline struct {
	executor  Executor
	stages    []Stage
	personas  Personas
	guard     *guard.Guard
	lockout   *guard.Lockout
	alerter   alert.Alerter
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time
}

type Option func(*Pipeline)

// WithStages replaces the default stage graph.
func WithStages(stages []Stage) Option {
	return func(p *Pipeline) { p.stages = append([]Stage(nil), stages...) }
}

// WithPersonas overrides personas per stage. Stages not present keep their default.
func WithPersonas(personas Personas) Option {
	return func(p *Pipeline) {
		for k, v := range personas {
			p.personas[k] = v
		}
	}
}

func WithGuard(g *guard.Guard) Option {
	return func(p *Pipeline) { p.guard = g }
}

func WithLockout(l *guard.Lockout) Option {
	return func(p *Pipeline) { p.lockout = l }
}

func WithAlerter(a alert.Alerter) Option {
	return func(p *Pipeline) { p.alerter = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver adds an event observer. Observers must not block.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline using the default stages, personas and guard.
func New(executor Executor, opts ...Option) (*Pipeline, error) {
	if executor == nil {
		return nil, ErrNoExecutor
	}
	p := &Pipeline{
		executor: executor,
		stages:   DefaultStages(),
		personas: DefaultPersonas(),
		guard:    guard.Default(),
		alerter:  alert.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.alerter == nil {
		p.alerter = alert.Nop{}
	}
	if err := ValidateStages(p.stages); err != nil {
		return nil, err
	}
	if err := p.personas.Validate(p.stages); err != nil {
		return nil, err
	}
	return p, nil
}

// Stages returns a copy of the stage graph.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Personas returns a copy of the persona table.
func (p *Pipeline) Personas() Personas {
	return p.personas.clone()
}

// Execute runs the guard and then every stage in order. It always returns a Run.
// The error is ErrBlocked for guarded runs and a *StageError for failed runs.
func (p *Pipeline) Execute(ctx context.Context, task Task) (*Run, error) {
	run := newRun(task, p.now())
	logger := p.logger.With("run", run.ID)
	personas := p.personas.clone()

	run.Context = document.BuildContext(task.Documents)
	p.emit(&event.RunStartedEvent{
		RunID:     run.ID,
		CaseID:    run.CaseID,
		Requester: task.Requester,
		Task:      task.Text,
		Documents: len(task.Documents),
		At:        run.StartedAt,
	})
	logger.Info("run started", "case", run.CaseID, "documents", len(task.Documents))

	run.transition(StateGuarding)
	if p.lockout.Locked(task.Requester) {
		return p.block(ctx, logger, run, "", "requester locked out", fmt.Errorf("%w: %w", ErrBlocked, ErrLockedOut))
	}
	if phrase, ok := p.guard.CheckAll(task.Text, run.Context); !ok {
		p.lockout.Record(task.Requester)
		return p.block(ctx, logger, run, phrase, "denylisted phrase", ErrBlocked)
	}

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.fail(logger, run, stage.ID, err)
		}
		run.transition(StageState(stage.ID))
		input := p.stageInput(stage, run)
		run.Inputs[stage.ID] = input
		p.emit(&event.StageStartedEvent{
			RunID: run.ID,
			Stage: string(stage.ID),
			Role:  stage.Role,
			Input: input,
			At:    p.now(),
		})

		start := p.now()
		out, err := p.executor.RunStage(ctx, personas[stage.ID], input)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyOutput
		}
		if err != nil {
			return p.fail(logger, run, stage.ID, err)
		}
		elapsed := p.now().Sub(start)

		run.Results = append(run.Results, StageResult{Stage: stage.ID, Role: stage.Role, Label: stage.Label, Text: out})
		p.emit(&event.StageCompletedEvent{RunID: run.ID, Stage: string(stage.ID), Output: out, Duration: elapsed})
		logger.Info("stage completed", "stage", stage.ID, "duration", elapsed)
	}

	run.Status = StatusCompleted
	run.transition(StateDone)
	run.FinishedAt = p.now()
	p.emit(&event.RunCompletedEvent{RunID: run.ID, CaseID: run.CaseID, Duration: run.Duration()})
	logger.Info("run completed", "duration", run.Duration())
	return run, nil
}

func (p *Pipeline) block(ctx context.Context, logger *slog.Logger, run *Run, phrase, reason string, err error) (*Run, error) {
	run.Status = StatusBlocked
	run.BlockedPhrase = phrase
	run.Err = err
	run.transition(StateBlocked)
	run.FinishedAt = p.now()
	logger.Warn("run blocked", "requester", run.Task.Requester, "phrase", phrase, "reason", reason)

	a := alert.Alert{RunID: run.ID, Requester: run.Task.Requester, Phrase: phrase, Reason: reason, At: run.FinishedAt}
	if alertErr := p.alerter.Alert(ctx, a); alertErr != nil {
		logger.Warn("alert delivery failed", "error", alertErr)
	}
	p.emit(&event.RunBlockedEvent{RunID: run.ID, Requester: run.Task.Requester, Phrase: phrase, Reason: reason})
	return run, err
}

func (p *Pipeline) fail(logger *slog.Logger, run *Run, stage StageID, cause error) (*Run, error) {
	err := &StageError{Stage: stage, Err: cause}
	run.Status = StatusFailed
	run.FailedStage = stage
	run.Err = err
	run.transition(StateFailed)
	run.FinishedAt = p.now()
	level := slog.LevelError
	if errors.Is(cause, context.Canceled) {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "stage failed", "stage", stage, "error", cause)
	p.emit(&event.RunFailedEvent{RunID: run.ID, Stage: string(stage), Err: err})
	return run, err
}

// stageInput assembles the text a stage receives from the task and earlier results.
// A stage reading exactly one earlier output receives it unlabeled.
func (p *Pipeline) stageInput(stage Stage, run *Run) string {
	var sections []string
	if stage.IncludeTask {
		sections = append(sections, "Task: "+run.Task.Text, "Document Context: "+run.Context)
	}
	if !stage.IncludeTask && len(stage.Inputs) == 1 {
		res, _ := run.Result(stage.Inputs[0])
		return res.Text
	}
	for _, id := range stage.Inputs {
		res, _ := run.Result(id)
		sections = append(sections, res.Label+": "+res.Text)
	}
	return strings.Join(sections, "\n\n")
}

func (p *Pipeline) emit(e event.Event) {
	for _, o := range p.observers {
		o(e)
	}
}
