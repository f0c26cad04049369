package present

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nexxia-ai/pentagon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedRun() *pentagon.Run {
	return &pentagon.Run{
		ID:     "01RUN",
		CaseID: "ABCD1234",
		Status: pentagon.StatusCompleted,
		Results: []pentagon.StageResult{
			{Stage: pentagon.StageFacts, Role: "Analyst", Label: "Facts", Text: "F1"},
			{Stage: pentagon.StageRisks, Role: "Opponent", Label: "Counter-arguments", Text: "R1"},
			{Stage: pentagon.StagePosition, Role: "Solicitor", Label: "Legal Position", Text: "P1"},
			{Stage: pentagon.StageAudit, Role: "Compliance Auditor", Label: "Audit", Text: "A1"},
			{Stage: pentagon.StageVerdict, Role: "Judge", Label: "Verdict", Text: "V1"},
		},
	}
}

func TestRenderCompleted(t *testing.T) {
	got := Render(completedRun())
	want := View{
		RunID:  "01RUN",
		CaseID: "ABCD1234",
		Status: "completed",
		Panels: []Panel{
			{Stage: "facts", Title: "Facts (Analyst)", Text: "F1", Tone: ToneInfo},
			{Stage: "risks", Title: "Counter-arguments (Opponent)", Text: "R1", Tone: ToneDanger},
			{Stage: "position", Title: "Legal Position (Solicitor)", Text: "P1", Tone: ToneInfo},
			{Stage: "audit", Title: "Audit (Compliance Auditor)", Text: "A1", Tone: ToneWarning},
			{Stage: "verdict", Title: "Verdict (Judge)", Text: "V1", Tone: ToneSuccess},
		},
		Verdict: "V1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderBlocked(t *testing.T) {
	run := &pentagon.Run{ID: "r", CaseID: "C", Status: pentagon.StatusBlocked, BlockedPhrase: "rm -rf"}
	got := Render(run)
	want := View{RunID: "r", CaseID: "C", Status: "blocked", Message: pentagon.BlockedMessage}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, got.Message, "rm -rf")
}

func TestRenderFailed(t *testing.T) {
	run := completedRun()
	run.Status = pentagon.StatusFailed
	run.FailedStage = pentagon.StagePosition
	run.Results = run.Results[:2]
	run.Err = &pentagon.StageError{Stage: pentagon.StagePosition, Err: errors.New("boom")}

	got := Render(run)
	assert.Contains(t, got.Message, "position")
	assert.Len(t, got.Panels, 2)
	assert.Empty(t, got.Verdict)
}

func TestRenderDoesNotMutate(t *testing.T) {
	run := completedRun()
	before := *run
	before.Results = append([]pentagon.StageResult(nil), run.Results...)
	Render(run)
	assert.Equal(t, before.Results, run.Results)
	assert.Equal(t, before.Status, run.Status)
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, Render(completedRun())))
	out := buf.String()
	assert.Contains(t, out, "Verdict (Judge)")
	assert.Contains(t, out, "ABCD1234")
	assert.Contains(t, out, "V1")
}
