package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexxia-ai/pentagon/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerWritesRun(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracer(TraceConfig{Directory: dir})

	tr.Observe(&event.RunStartedEvent{RunID: "r1", CaseID: "ABCD1234", Task: "Analyze claim", Documents: 1})
	tr.Observe(&event.StageStartedEvent{RunID: "r1", Stage: "facts", Role: "Analyst", Input: "Task: Analyze claim\nline two"})
	tr.Observe(&event.StageCompletedEvent{RunID: "r1", Stage: "facts", Output: "F1", Duration: 2 * time.Second})
	tr.Observe(&event.RunFailedEvent{RunID: "r1", Stage: "risks", Err: errors.New("boom")})

	content, err := os.ReadFile(tr.Filepath("r1"))
	require.NoError(t, err)
	s := string(content)
	assert.Contains(t, s, "Start run r1 case ABCD1234")
	assert.Contains(t, s, "facts (Analyst)")
	assert.Contains(t, s, "   line two\n")
	assert.Contains(t, s, "   F1\n")
	assert.Contains(t, s, "Failed at risks: boom")
}

func TestTracerBlocked(t *testing.T) {
	tr := NewTracer(TraceConfig{Directory: t.TempDir()})
	tr.Observe(&event.RunStartedEvent{RunID: "r2"})
	tr.Observe(&event.RunBlockedEvent{RunID: "r2", Phrase: "rm -rf", Reason: "denylisted phrase"})

	content, err := os.ReadFile(tr.Filepath("r2"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `Blocked: denylisted phrase ("rm -rf")`)
}

func TestTracerMaxFiles(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracer(TraceConfig{Directory: dir, MaxTraceFiles: 3})

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("old%d", i)
		tr.Observe(&event.RunStartedEvent{RunID: id})
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(tr.Filepath(id), mod, mod))
	}

	files, err := filepath.Glob(filepath.Join(dir, "trace-*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
	_, err = os.Stat(tr.Filepath("old4"))
	assert.NoError(t, err)
	_, err = os.Stat(tr.Filepath("old0"))
	assert.True(t, os.IsNotExist(err))
}

func TestTracerRetention(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracer(TraceConfig{Directory: dir, RetentionDuration: time.Hour})

	stale := filepath.Join(dir, "trace-stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	tr.Observe(&event.RunStartedEvent{RunID: "fresh"})
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tr.Filepath("fresh"))
	assert.NoError(t, err)
}
