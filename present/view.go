// Package present turns a finished run into something a person can read.
// It only reads the run.
package present

import (
	"fmt"

	"github.com/nexxia-ai/pentagon"
)

// Tone hints how a panel should be styled.
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneDanger  Tone = "danger"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
)

var stageTones = map[pentagon.StageID]Tone{
	pentagon.StageFacts:    ToneInfo,
	pentagon.StageRisks:    ToneDanger,
	pentagon.StagePosition: ToneInfo,
	pentagon.StageAudit:    ToneWarning,
	pentagon.StageVerdict:  ToneSuccess,
}

type Panel struct {
	Stage string `json:"stage"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Tone  Tone   `json:"tone"`
}

type View struct {
	RunID   string  `json:"run_id"`
	CaseID  string  `json:"case_id"`
	Status  string  `json:"status"`
	Panels  []Panel `json:"panels,omitempty"`
	Verdict string  `json:"verdict,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Render builds the view of a run. Blocked runs show only the generic security
// message; failed runs name the stage and keep the panels that completed.
func Render(run *pentagon.Run) View {
	if run == nil {
		return View{}
	}
	v := View{RunID: run.ID, CaseID: run.CaseID, Status: string(run.Status)}

	switch run.Status {
	case pentagon.StatusBlocked:
		v.Message = pentagon.BlockedMessage
		return v
	case pentagon.StatusFailed:
		v.Message = fmt.Sprintf("The run failed at the %s stage. Partial results are shown.", run.FailedStage)
	}

	for _, res := range run.Results {
		tone, ok := stageTones[res.Stage]
		if !ok {
			tone = ToneInfo
		}
		v.Panels = append(v.Panels, Panel{
			Stage: string(res.Stage),
			Title: fmt.Sprintf("%s (%s)", res.Label, res.Role),
			Text:  res.Text,
			Tone:  tone,
		})
	}
	v.Verdict = run.Verdict()
	return v
}
