package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/tldrbot/internal/history"
	"github.com/codefionn/tldrbot/internal/output"
)

type fakeExecutor struct {
	result  string
	err     error
	prompts []string
}

func (f *fakeExecutor) Run(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeRecorder struct {
	runs []history.Run
}

func (f *fakeRecorder) Record(ctx context.Context, run history.Run) (string, error) {
	f.runs = append(f.runs, run)
	return "id", nil
}

var fixedNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.Local)

func newTestRunner(t *testing.T, exec Executor, rec Recorder) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	opts := Options{Now: func() time.Time { return fixedNow }}
	if rec != nil {
		opts.History = rec
	}
	return NewRunner(exec, output.New(dir), opts), dir
}

func TestPromptInterpolatesDateAndFilename(t *testing.T) {
	prompt, err := Daily.Prompt(fixedNow)
	require.NoError(t, err)
	assert.Contains(t, prompt, "summary for 2024-01-15:")
	assert.Contains(t, prompt, `"# TLDR Daily Summary - 2024-01-15"`)
	assert.Contains(t, prompt, "'tldr_summary_20240115.md'")

	prompt, err = Multi.Prompt(fixedNow)
	require.NoError(t, err)
	assert.Contains(t, prompt, "https://tldr.tech/crypto")
	assert.Contains(t, prompt, "'tldr_comprehensive_20240115.md'")

	prompt, err = AI.Prompt(fixedNow)
	require.NoError(t, err)
	assert.Contains(t, prompt, "'ai_summary_20240115.md'")
}

func TestLookup(t *testing.T) {
	task, ok := Lookup(" Daily ")
	require.True(t, ok)
	assert.Equal(t, PrefixDaily, task.Prefix)

	_, ok = Lookup("weekly")
	assert.False(t, ok)
	assert.Len(t, Canned(), 3)
}

func TestDailySavesResult(t *testing.T) {
	exec := &fakeExecutor{result: "# TLDR Daily Summary - 2024-01-15\n"}
	rec := &fakeRecorder{}
	runner, dir := newTestRunner(t, exec, rec)

	path, err := runner.Daily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tldr_summary_20240115.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exec.result, string(data))

	require.Len(t, exec.prompts, 1)
	assert.True(t, strings.Contains(exec.prompts[0], "2024-01-15"))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "daily", rec.runs[0].Task)
	assert.Equal(t, history.StatusSucceeded, rec.runs[0].Status)
	assert.Equal(t, path, rec.runs[0].Path)
	assert.Equal(t, len(exec.result), rec.runs[0].Bytes)
}

func TestFailedRunSavesNothing(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("stream reset")}
	rec := &fakeRecorder{}
	runner, dir := newTestRunner(t, exec, rec)

	path, err := runner.AI(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "stream reset")
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, history.StatusFailed, rec.runs[0].Status)
	assert.Equal(t, "stream reset", rec.runs[0].Error)
}

func TestCustom(t *testing.T) {
	exec := &fakeExecutor{result: "weekly digest"}
	runner, dir := newTestRunner(t, exec, nil)

	path, err := runner.Custom(context.Background(), "Summarize the week", "weekly")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weekly_20240115.md"), path)
	assert.Equal(t, []string{"Summarize the week"}, exec.prompts)

	_, err = runner.Custom(context.Background(), "  ", "weekly")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = runner.Custom(context.Background(), "x", "../escape")
	assert.Error(t, err)
	assert.Len(t, exec.prompts, 1)
}

func TestListAndLatest(t *testing.T) {
	runner, dir := newTestRunner(t, &fakeExecutor{}, nil)
	for _, name := range []string{"tldr_summary_20240201.md", "tldr_summary_20240101.md", "ai_summary_20240101.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files, err := runner.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "tldr_summary_20240101.md"),
		filepath.Join(dir, "tldr_summary_20240201.md"),
	}, files)

	latest, ok, err := runner.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "tldr_summary_20240201.md"), latest)
}

func TestRunnerWithSQLiteHistory(t *testing.T) {
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	runner, _ := newTestRunner(t, &fakeExecutor{result: "summary"}, db)
	_, err = runner.Multi(context.Background())
	require.NoError(t, err)

	runs, err := db.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "multi", runs[0].Task)
	assert.Equal(t, PrefixComprehensive, runs[0].Prefix)
}
