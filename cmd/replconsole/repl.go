package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/config"
	"github.com/xxxsen/replconsole/internal/evaluator"
	"github.com/xxxsen/replconsole/internal/session"
	"github.com/xxxsen/replconsole/internal/surface"
)

var errScriptFailed = errors.New("script reported errors")

// terminal is one session driven from a terminal. Fragments are printed as
// soon as they are prepended.
type terminal struct {
	ctrl     *session.Controller
	input    *surface.Input
	stderrs  atomic.Int32
	evalName string
}

func openTerminal(ctx context.Context, cfg *config.Config, argv []string, stdout, stderr io.Writer) (*terminal, error) {
	resultHandler, err := session.ResultHandlerFor(cfg.Session.ResultMode)
	if err != nil {
		return nil, err
	}
	data, err := evaluator.WithArgs(cfg.Evaluator.Data, argv)
	if err != nil {
		return nil, err
	}
	t := &terminal{input: surface.NewInput()}
	output := surface.NewOutput(surface.WithLimit(cfg.Session.OutputLimit))
	output.Watch(terminalWatcher(stdout, stderr))
	output.Watch(func(rec surface.OutputRecord) {
		if rec.Kind == surface.KindStderr {
			t.stderrs.Add(1)
		}
	})

	boundary, err := evaluator.New(cfg.Evaluator.Name, data, evaluator.Streams{
		Stdout: output.Writer(surface.KindStdout),
		Stderr: output.Writer(surface.KindStderr),
	})
	if err != nil {
		return nil, err
	}
	t.evalName = boundary.Name()
	t.ctrl = session.New(boundary, t.input, output,
		session.WithID("terminal"),
		session.WithEcho(false),
		session.WithResultHandler(resultHandler),
		session.WithQueueSize(cfg.Session.QueueSize),
	)
	if err := t.ctrl.Start(ctx); err != nil {
		t.ctrl.Close()
		return nil, err
	}
	if err := t.ctrl.Wait(ctx); err != nil {
		t.ctrl.Close()
		return nil, fmt.Errorf("start %s evaluator: %w", t.evalName, err)
	}
	logutil.GetLogger(ctx).Debug("terminal session ready", zap.String("evaluator", t.evalName))
	return t, nil
}

// eval submits text as one activation and waits until it has been handled.
func (t *terminal) eval(ctx context.Context, text string) error {
	ev, err := t.input.Submit(text, surface.Activate)
	if err != nil {
		return err
	}
	_, err = session.Await(ctx, ev)
	return err
}

func (t *terminal) Close() {
	t.ctrl.Close()
}

// runRepl reads lines until EOF. The line editor plays the input control.
func runRepl(ctx context.Context, cfg *config.Config) error {
	rl, err := readline.New(cfg.Properties.Prompt)
	if err != nil {
		return fmt.Errorf("init line editor: %w", err)
	}
	defer rl.Close()

	t, err := openTerminal(ctx, cfg, nil, rl.Stdout(), rl.Stderr())
	if err != nil {
		return err
	}
	defer t.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			_, _ = fmt.Fprintln(rl.Stdout(), "Quitting...")
			return nil
		}
		if err := t.eval(ctx, line); err != nil {
			return err
		}
	}
}

// runScript evaluates a whole file in a fresh session with argv bound as
// ARGV, then exits. Results are not printed; output and errors are.
func runScript(ctx context.Context, cfg *config.Config, path string, argv []string, stdout, stderr io.Writer) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	scriptCfg := *cfg
	scriptCfg.Session.ResultMode = session.ResultModeDiscard
	t, err := openTerminal(ctx, &scriptCfg, argv, stdout, stderr)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.eval(ctx, string(source)); err != nil {
		return err
	}
	if t.stderrs.Load() > 0 {
		return fmt.Errorf("%s: %w", path, errScriptFailed)
	}
	return nil
}

func terminalWatcher(stdout, stderr io.Writer) surface.Watcher {
	return func(rec surface.OutputRecord) {
		switch rec.Kind {
		case surface.KindPrompt:
		case surface.KindStderr:
			writeFragment(stderr, rec.Text)
		default:
			writeFragment(stdout, rec.Text)
		}
	}
}

func writeFragment(w io.Writer, text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, _ = io.WriteString(w, text)
}
