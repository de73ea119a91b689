package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/evaluator"
	"github.com/xxxsen/replconsole/internal/model"
	appErr "github.com/xxxsen/replconsole/internal/pkg/errors"
	"github.com/xxxsen/replconsole/internal/pkg/timeutil"
	"github.com/xxxsen/replconsole/internal/repo"
	"github.com/xxxsen/replconsole/internal/session"
	"github.com/xxxsen/replconsole/internal/surface"
)

const storeTimeout = 5 * time.Second

type ConsoleOptions struct {
	Evaluator     string
	EvaluatorArgs interface{}
	Echo          bool
	ResultHandler session.ResultHandler
	QueueSize     int
	OutputLimit   int
	MaxSessions   int
	IdleTTL       time.Duration
}

type SessionView struct {
	ID        string                 `json:"id"`
	Evaluator string                 `json:"evaluator"`
	State     string                 `json:"state"`
	Ready     bool                   `json:"ready"`
	Error     string                 `json:"error,omitempty"`
	LastSeq   uint64                 `json:"last_seq"`
	Records   []surface.OutputRecord `json:"records,omitempty"`
}

// ConsoleService keeps one controller per page load.
type ConsoleService struct {
	opts        ConsoleOptions
	sessions    *repo.SessionRepo
	transcripts *repo.TranscriptRepo
	cache       *expirable.LRU[string, *session.Controller]
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewConsoleService builds the service. Both repos may be nil, which turns
// transcript recording off.
func NewConsoleService(opts ConsoleOptions, sessions *repo.SessionRepo, transcripts *repo.TranscriptRepo) *ConsoleService {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 256
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.ResultHandler == nil {
		opts.ResultHandler = session.RenderResult
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ConsoleService{
		opts:        opts,
		sessions:    sessions,
		transcripts: transcripts,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.cache = expirable.NewLRU[string, *session.Controller](opts.MaxSessions, s.onEvict, opts.IdleTTL)
	return s
}

func (s *ConsoleService) onEvict(id string, ctrl *session.Controller) {
	logutil.GetLogger(s.ctx).Info("console session released", zap.String("session_id", id))
	go ctrl.Close()
}

// Open starts a new session, as one page load does.
func (s *ConsoleService) Open(ctx context.Context) (*SessionView, error) {
	id := uuid.NewString()
	output := surface.NewOutput(surface.WithLimit(s.opts.OutputLimit))
	boundary, err := evaluator.New(s.opts.Evaluator, s.opts.EvaluatorArgs, evaluator.Streams{
		Stdout: output.Writer(surface.KindStdout),
		Stderr: output.Writer(surface.KindStderr),
	})
	if err != nil {
		return nil, err
	}
	ctrl := session.New(boundary, surface.NewInput(), output,
		session.WithID(id),
		session.WithEcho(s.opts.Echo),
		session.WithResultHandler(s.opts.ResultHandler),
		session.WithQueueSize(s.opts.QueueSize),
		session.WithStateObserver(s.stateRecorder(id)),
		session.WithExchangeObserver(s.exchangeRecorder(id)),
	)

	if s.sessions != nil {
		now := timeutil.NowUnix()
		row := &model.ConsoleSession{
			ID:        id,
			Evaluator: boundary.Name(),
			State:     session.StateUninitialized.String(),
			Ctime:     now,
			Mtime:     now,
		}
		if err := s.sessions.Create(ctx, row); err != nil {
			return nil, err
		}
	}
	s.cache.Add(id, ctrl)
	if err := ctrl.Start(s.ctx); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("console session opened",
		zap.String("session_id", id),
		zap.String("evaluator", boundary.Name()),
	)
	return s.view(ctrl, boundary.Name(), false), nil
}

func (s *ConsoleService) lookup(id string) (*session.Controller, error) {
	ctrl, ok := s.cache.Get(id)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	// refresh the idle deadline
	s.cache.Add(id, ctrl)
	return ctrl, nil
}

func (s *ConsoleService) Get(id string, withRecords bool) (*SessionView, error) {
	ctrl, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.view(ctrl, s.opts.Evaluator, withRecords), nil
}

// WaitReady blocks until the session is armed or its startup failed.
func (s *ConsoleService) WaitReady(ctx context.Context, id string) error {
	ctrl, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := ctrl.Wait(ctx); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return appErr.ErrSessionGone
		}
		if ctx.Err() != nil {
			return err
		}
		return appErr.ErrStartup
	}
	return nil
}

// Output returns fragments newer than since, newest first.
func (s *ConsoleService) Output(id string, since uint64) ([]surface.OutputRecord, uint64, error) {
	ctrl, err := s.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	out := ctrl.Output()
	return out.Since(since), out.LastSeq(), nil
}

func (s *ConsoleService) Submit(ctx context.Context, id, text string) (*session.Exchange, error) {
	ctrl, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	x, err := ctrl.Submit(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotReady):
			if ctrl.Err() != nil {
				return nil, appErr.ErrStartup
			}
			return nil, appErr.ErrNotReady
		case errors.Is(err, session.ErrQueueFull):
			return nil, appErr.ErrQueueFull
		case errors.Is(err, session.ErrClosed):
			return nil, appErr.ErrSessionGone
		}
		return nil, err
	}
	return &x, nil
}

func (s *ConsoleService) Close(id string) error {
	if _, ok := s.cache.Peek(id); !ok {
		return appErr.ErrNotFound
	}
	s.cache.Remove(id)
	return nil
}

func (s *ConsoleService) Transcript(ctx context.Context, id string, limit, offset int) ([]model.TranscriptEntry, error) {
	if s.transcripts == nil {
		return nil, appErr.ErrNoTranscript
	}
	return s.transcripts.ListBySession(ctx, id, limit, offset)
}

func (s *ConsoleService) Len() int {
	return s.cache.Len()
}

// Shutdown tears every live session down.
func (s *ConsoleService) Shutdown() {
	ctrls := s.cache.Values()
	s.cancel()
	s.cache.Purge()
	for _, ctrl := range ctrls {
		ctrl.Close()
	}
}

func (s *ConsoleService) view(ctrl *session.Controller, evaluatorName string, withRecords bool) *SessionView {
	v := &SessionView{
		ID:        ctrl.ID(),
		Evaluator: evaluatorName,
		State:     ctrl.State().String(),
		Ready:     ctrl.State() == session.StateReady,
		LastSeq:   ctrl.Output().LastSeq(),
	}
	if err := ctrl.Err(); err != nil {
		v.Error = err.Error()
	}
	if withRecords {
		v.Records = ctrl.Output().Records()
	}
	return v
}

func (s *ConsoleService) stateRecorder(id string) func(session.State, error) {
	return func(state session.State, err error) {
		if s.sessions == nil {
			return
		}
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.sessions.UpdateState(ctx, id, state.String(), errMsg, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Error("record session state failed",
				zap.String("session_id", id),
				zap.String("state", state.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *ConsoleService) exchangeRecorder(id string) func(session.Exchange) {
	return func(x session.Exchange) {
		if s.transcripts == nil {
			return
		}
		entry := &model.TranscriptEntry{
			SessionID: id,
			Seq:       int64(x.Submission.Seq),
			Source:    x.Submission.Source,
			Result:    x.Result.Text,
			Ctime:     x.Submission.Time.Unix(),
		}
		if x.Result.HasValue {
			entry.HasResult = 1
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.transcripts.Append(ctx, entry); err != nil {
			logutil.GetLogger(ctx).Error("record transcript failed",
				zap.String("session_id", id),
				zap.Uint64("seq", x.Submission.Seq),
				zap.Error(err),
			)
		}
	}
}
