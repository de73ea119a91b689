package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/evaluator"
	"github.com/xxxsen/replconsole/internal/surface"
)

// ResultHandler decides what happens to the value an evaluation returned.
type ResultHandler func(ctx context.Context, out *surface.Output, sub Submission, res evaluator.Result)

const (
	ResultModeRender  = "render"
	ResultModeLog     = "log"
	ResultModeDiscard = "discard"
)

func RenderResult(_ context.Context, out *surface.Output, _ Submission, res evaluator.Result) {
	if !res.HasValue {
		return
	}
	out.Prepend(surface.KindResult, res.Text)
}

func LogResult(ctx context.Context, _ *surface.Output, sub Submission, res evaluator.Result) {
	if !res.HasValue {
		return
	}
	logutil.GetLogger(ctx).Info("evaluation result",
		zap.Uint64("seq", sub.Seq),
		zap.String("result", res.Text),
	)
}

func DiscardResult(context.Context, *surface.Output, Submission, evaluator.Result) {}

func ResultHandlerFor(mode string) (ResultHandler, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ResultModeRender:
		return RenderResult, nil
	case ResultModeLog:
		return LogResult, nil
	case ResultModeDiscard:
		return DiscardResult, nil
	default:
		return nil, fmt.Errorf("unsupported result mode: %s", mode)
	}
}
