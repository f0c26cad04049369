package pentagon

import (
	"fmt"
)

// StageID names one step of the pipeline. It keys personas and results.
type StageID string

const (
	StageFacts    StageID = "facts"
	StageRisks    StageID = "risks"
	StagePosition StageID = "position"
	StageAudit    StageID = "audit"
	StageVerdict  StageID = "verdict"
)

// Stage describes one role-scoped generation step and which earlier outputs it reads.
type Stage struct {
	ID   StageID
	Role string
	// Label heads this stage's output when it is fed into later stages.
	Label string
	// IncludeTask feeds the task text and the document context into the stage.
	IncludeTask bool
	// Inputs lists earlier stages whose outputs this stage reads, in order.
	Inputs []StageID
}

// DefaultStages returns the Analyst, Opponent, Solicitor, Compliance Auditor and
// Judge chain. Every stage after the opponent sees all earlier outputs, not just
// its predecessor's.
func DefaultStages() []Stage {
	return []Stage{
		{ID: StageFacts, Role: "Analyst", Label: "Facts", IncludeTask: true},
		{ID: StageRisks, Role: "Opponent", Label: "Counter-arguments", Inputs: []StageID{StageFacts}},
		{ID: StagePosition, Role: "Solicitor", Label: "Legal Position", Inputs: []StageID{StageFacts, StageRisks}},
		{ID: StageAudit, Role: "Compliance Auditor", Label: "Audit", Inputs: []StageID{StageFacts, StageRisks, StagePosition}},
		{ID: StageVerdict, Role: "Judge", Label: "Verdict", Inputs: []StageID{StageFacts, StageRisks, StagePosition, StageAudit}},
	}
}

// Personas maps each stage to its fixed role instruction.
type Personas map[StageID]string

// DefaultPersonas returns the role instructions of the legal review pipeline.
func DefaultPersonas() Personas {
	return Personas{
		StageFacts:    "You are a Professional Legal Analyst in Ireland. Extract the key facts of the matter, with dates and parties. Respond strictly in English.",
		StageRisks:    "You are the Adversary acting for the opposing side. Find every legal weakness in the facts presented. Respond strictly in English.",
		StagePosition: "You are an Irish Solicitor. Apply the Unfair Dismissals Act 1977 and build a legal position that rebuts every point raised by the Adversary. Respond strictly in English.",
		StageAudit:    "You are the Compliance Auditor. Verify the logic of the facts, the counter-arguments and the legal position, and flag any unsupported claim or lack of AI transparency. Respond strictly in English.",
		StageVerdict:  "You are the Supreme Judge. Weigh the analysis, the risks, the law and the audit, and issue a final, unique determination. Respond strictly in English.",
	}
}

func (p Personas) clone() Personas {
	out := make(Personas, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ValidateStages checks that ids are unique and that every input refers to an earlier stage.
func ValidateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidStages)
	}
	seen := make(map[StageID]bool, len(stages))
	for i, s := range stages {
		if s.ID == "" {
			return fmt.Errorf("%w: stage %d has no id", ErrInvalidStages, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate stage %s", ErrInvalidStages, s.ID)
		}
		if !s.IncludeTask && len(s.Inputs) == 0 {
			return fmt.Errorf("%w: stage %s has no input", ErrInvalidStages, s.ID)
		}
		for _, in := range s.Inputs {
			if !seen[in] {
				return fmt.Errorf("%w: stage %s reads %s which does not run before it", ErrInvalidStages, s.ID, in)
			}
		}
		seen[s.ID] = true
	}
	return nil
}

// Validate checks that every stage has a non-empty persona.
func (p Personas) Validate(stages []Stage) error {
	for _, s := range stages {
		if p[s.ID] == "" {
			return fmt.Errorf("%w: %s", ErrMissingPersona, s.ID)
		}
	}
	return nil
}
