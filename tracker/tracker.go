// Package tracker walks a five-step delivery workflow in which each step drafts a
// document from the knowledge log and fixing the draft appends it as a baseline.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nexxia-ai/pentagon"
	"github.com/nexxia-ai/pentagon/knowledge"
)

var (
	ErrStepOutOfRange = errors.New("step out of range")
	ErrDone           = errors.New("all steps are fixed")
	ErrStaleDraft     = errors.New("draft does not belong to the current step")
)

// Step is one role in the workflow.
type Step struct {
	Number  int
	Agent   string
	Persona string
	// Prompt is formatted with the knowledge context.
	Prompt string
}

// Steps returns the workflow in order.
func Steps() []Step {
	return []Step{
		{1, "Systems Architect",
			"You are a Systems Architect.",
			"Produce the system architecture: components, data flow, storage and deployment. Base it on the knowledge base: %s"},
		{2, "Business Analyst",
			"You are a Business Analyst.",
			"Produce the master specification: user roles, use cases and acceptance criteria. Base it on: %s"},
		{3, "Senior Programmer",
			"You are a Senior Programmer. Your task is to implement MVP Sprint 1-4.",
			"Base your work on the architecture and master specification: %s\nRespect the QA requirements (golden datasets, evidence first).\nDELIVER: the project file layout, the auth logic, case CRUD and the upload pipeline."},
		{4, "QA Verifier",
			"You are a QA Verifier.",
			"Deliver a test plan, five golden datasets and gate checklists based on: %s"},
		{5, "MVP Release",
			"You are the Release Manager.",
			"Prepare the MVP release notes, the go-live checklist and the known risks based on: %s"},
	}
}

// Draft is a generated, not yet fixed, work product.
type Draft struct {
	Step  int
	Agent string
	Text  string
}

// BaselineTitle is the knowledge entry title for a fixed step.
func BaselineTitle(agent string) string {
	return agent + " Baseline"
}

type Tracker struct {
	log      knowledge.Log
	executor pentagon.Executor
	steps    []Step

	mu   sync.Mutex
	step int
}

// New starts at step 1; call Resume to continue from the log.
func New(log knowledge.Log, executor pentagon.Executor) *Tracker {
	return &Tracker{log: log, executor: executor, steps: Steps(), step: 1}
}

// Resume positions the tracker after the last step with a baseline in the log.
func (t *Tracker) Resume(ctx context.Context) error {
	entries, err := t.log.All(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = 1
	for _, e := range entries {
		for _, s := range t.steps {
			if e.Title == BaselineTitle(s.Agent) && s.Number >= t.step {
				t.step = s.Number + 1
			}
		}
	}
	return nil
}

// Current returns the active step. ok is false once every step is fixed.
func (t *Tracker) Current() (Step, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.step > len(t.steps) {
		return Step{}, false
	}
	return t.steps[t.step-1], true
}

func (t *Tracker) SetStep(n int) error {
	if n < 1 || n > len(t.steps) {
		return fmt.Errorf("%w: %d (1..%d)", ErrStepOutOfRange, n, len(t.steps))
	}
	t.mu.Lock()
	t.step = n
	t.mu.Unlock()
	return nil
}

// Generate drafts the current step from the whole knowledge log.
func (t *Tracker) Generate(ctx context.Context) (Draft, error) {
	step, ok := t.Current()
	if !ok {
		return Draft{}, ErrDone
	}
	entries, err := t.log.All(ctx)
	if err != nil {
		return Draft{}, err
	}
	prompt := fmt.Sprintf(step.Prompt, knowledge.Context(entries))
	text, err := t.executor.RunStage(ctx, step.Persona, prompt)
	if err != nil {
		return Draft{}, fmt.Errorf("generate %s: %w", step.Agent, err)
	}
	if strings.TrimSpace(text) == "" {
		return Draft{}, fmt.Errorf("generate %s: %w", step.Agent, pentagon.ErrEmptyOutput)
	}
	return Draft{Step: step.Number, Agent: step.Agent, Text: text}, nil
}

// Fix appends the draft as the step's baseline and advances to the next step.
func (t *Tracker) Fix(ctx context.Context, d Draft) (knowledge.Entry, error) {
	step, ok := t.Current()
	if !ok {
		return knowledge.Entry{}, ErrDone
	}
	if d.Step != step.Number {
		return knowledge.Entry{}, fmt.Errorf("%w: draft step %d, current %d", ErrStaleDraft, d.Step, step.Number)
	}
	entry, err := t.log.Append(ctx, knowledge.NewEntry(BaselineTitle(step.Agent), d.Text))
	if err != nil {
		return knowledge.Entry{}, err
	}
	t.mu.Lock()
	if t.step == step.Number {
		t.step++
	}
	t.mu.Unlock()
	return entry, nil
}
