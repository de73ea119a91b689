package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/replconsole/internal/config"
	"github.com/xxxsen/replconsole/internal/db"
	"github.com/xxxsen/replconsole/internal/evaluator"
	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
	"github.com/xxxsen/replconsole/internal/repo"
	"github.com/xxxsen/replconsole/internal/session"
	"github.com/xxxsen/replconsole/internal/surface"
)

func newTestService(t *testing.T, opts ConsoleOptions, withStore bool) *ConsoleService {
	t.Helper()
	if opts.Evaluator == "" {
		opts.Evaluator = "js"
	}
	var sessions *repo.SessionRepo
	var transcripts *repo.TranscriptRepo
	if withStore {
		conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "console.db")})
		require.NoError(t, err)
		require.NoError(t, db.ApplyMigrations(conn))
		t.Cleanup(func() { _ = conn.Close() })
		sessions = repo.NewSessionRepo(conn)
		transcripts = repo.NewTranscriptRepo(conn)
	}
	svc := NewConsoleService(opts, sessions, transcripts)
	t.Cleanup(svc.Shutdown)
	return svc
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConsoleService_SubmitSequence(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{Echo: true}, true)
	ctx := waitCtx(t)

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, view.ID)
	require.Equal(t, "js", view.Evaluator)
	require.NoError(t, svc.WaitReady(ctx, view.ID))

	_, err = svc.Submit(ctx, view.ID, "var x = 5")
	require.NoError(t, err)
	x, err := svc.Submit(ctx, view.ID, "x + 1")
	require.NoError(t, err)
	require.Equal(t, evaluator.Value("6"), x.Result)
	require.Equal(t, uint64(2), x.Submission.Seq)
	require.Len(t, x.Records, 2)
	require.Equal(t, surface.KindResult, x.Records[0].Kind)
	require.Equal(t, "x + 1", x.Records[1].Text)

	got, err := svc.Get(view.ID, true)
	require.NoError(t, err)
	require.True(t, got.Ready)
	require.Equal(t, "ready", got.State)
	require.Len(t, got.Records, 3)
	require.Equal(t, "6", got.Records[0].Text)

	recs, last, err := svc.Output(view.ID, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)
	require.Len(t, recs, 2)

	entries, err := svc.Transcript(ctx, view.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "x + 1", entries[0].Source)
	require.Equal(t, "6", entries[0].Result)
	require.Equal(t, 1, entries[0].HasResult)
	require.Equal(t, 0, entries[1].HasResult)
}

func TestConsoleService_EvaluatorErrorsRenderAsStderr(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{Echo: false}, false)
	ctx := waitCtx(t)
	view, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.WaitReady(ctx, view.ID))

	x, err := svc.Submit(ctx, view.ID, "undefinedThing()")
	require.NoError(t, err)
	require.False(t, x.Result.HasValue)
	require.Len(t, x.Records, 1)
	require.Equal(t, surface.KindStderr, x.Records[0].Kind)

	x, err = svc.Submit(ctx, view.ID, `print("still here")`)
	require.NoError(t, err)
	require.Equal(t, "still here\n", x.Records[0].Text)
}

func TestConsoleService_StartupFailure(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{
		EvaluatorArgs: map[string]interface{}{"prelude": []string{"function ("}},
	}, true)
	ctx := waitCtx(t)

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, svc.WaitReady(ctx, view.ID), appErr.ErrStartup)

	_, err = svc.Submit(ctx, view.ID, "1 + 1")
	require.ErrorIs(t, err, appErr.ErrStartup)

	got, err := svc.Get(view.ID, false)
	require.NoError(t, err)
	require.False(t, got.Ready)
	require.Equal(t, session.StateInitializing.String(), got.State)
	require.NotEmpty(t, got.Error)

	entries, err := svc.Transcript(ctx, view.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestConsoleService_UnknownAndClosed(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{}, false)
	ctx := waitCtx(t)

	_, err := svc.Submit(ctx, "nope", "1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = svc.Get("nope", false)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, svc.Close("nope"), appErr.ErrNotFound)

	view, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Close(view.ID))
	_, err = svc.Get(view.ID, false)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = svc.Transcript(ctx, view.ID, 10, 0)
	require.ErrorIs(t, err, appErr.ErrNoTranscript)
}

func TestConsoleService_EvictsOldestSession(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{MaxSessions: 1}, false)
	ctx := waitCtx(t)

	first, err := svc.Open(ctx)
	require.NoError(t, err)
	second, err := svc.Open(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, svc.Len())
	_, err = svc.Get(first.ID, false)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = svc.Get(second.ID, false)
	require.NoError(t, err)
}

func TestConsoleService_UnknownEvaluator(t *testing.T) {
	svc := newTestService(t, ConsoleOptions{Evaluator: "cobol"}, false)
	_, err := svc.Open(context.Background())
	require.Error(t, err)
}
