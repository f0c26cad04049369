package tracker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexxia-ai/pentagon"
	"github.com/nexxia-ai/pentagon/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) knowledge.Log {
	t.Helper()
	log, err := knowledge.OpenFileLog(filepath.Join(t.TempDir(), "knowledge_base.json"))
	require.NoError(t, err)
	return log
}

func TestGenerateAndFixAdvances(t *testing.T) {
	ctx := context.Background()
	log := newLog(t)
	_, err := log.Append(ctx, knowledge.Entry{Title: "Master Spec", Content: "case management"})
	require.NoError(t, err)

	var prompts []string
	exec := pentagon.ExecutorFunc(func(_ context.Context, persona, input string) (string, error) {
		prompts = append(prompts, input)
		return "draft from " + persona, nil
	})
	tr := New(log, exec)
	require.NoError(t, tr.SetStep(3))

	d, err := tr.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Step)
	assert.Equal(t, "Senior Programmer", d.Agent)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Master Spec: case management")

	entry, err := tr.Fix(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "Senior Programmer Baseline", entry.Title)

	step, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, 4, step.Number)

	all, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, strings.HasPrefix(all[1].Content, "draft from"))

	_, err = tr.Fix(ctx, d)
	assert.ErrorIs(t, err, ErrStaleDraft)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	log := newLog(t)
	_, err := log.Append(ctx, knowledge.Entry{Title: "Systems Architect Baseline", Content: "a"})
	require.NoError(t, err)
	_, err = log.Append(ctx, knowledge.Entry{Title: "Business Analyst Baseline", Content: "b"})
	require.NoError(t, err)

	tr := New(log, pentagon.ExecutorFunc(func(context.Context, string, string) (string, error) { return "x", nil }))
	require.NoError(t, tr.Resume(ctx))
	step, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, "Senior Programmer", step.Agent)
}

func TestDone(t *testing.T) {
	ctx := context.Background()
	tr := New(newLog(t), pentagon.ExecutorFunc(func(context.Context, string, string) (string, error) { return "x", nil }))
	require.NoError(t, tr.SetStep(5))
	d, err := tr.Generate(ctx)
	require.NoError(t, err)
	_, err = tr.Fix(ctx, d)
	require.NoError(t, err)

	_, ok := tr.Current()
	assert.False(t, ok)
	_, err = tr.Generate(ctx)
	assert.ErrorIs(t, err, ErrDone)
}

func TestSetStepRange(t *testing.T) {
	tr := New(newLog(t), nil)
	assert.ErrorIs(t, tr.SetStep(0), ErrStepOutOfRange)
	assert.ErrorIs(t, tr.SetStep(6), ErrStepOutOfRange)
	assert.NoError(t, tr.SetStep(1))
}

func TestGenerateEmptyOutput(t *testing.T) {
	tr := New(newLog(t), pentagon.ExecutorFunc(func(context.Context, string, string) (string, error) { return " ", nil }))
	_, err := tr.Generate(context.Background())
	assert.ErrorIs(t, err, pentagon.ErrEmptyOutput)
}
