package evaluator

import (
	"context"
	"errors"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type StarlarkConfig struct {
	Prelude []string `json:"prelude"`
	Args    []string `json:"args"`
}

func init() {
	Register("starlark", func(args interface{}, streams Streams) (Boundary, error) {
		var cfg StarlarkConfig
		if err := decodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return NewStarlark(cfg, streams), nil
	})
}

var starlarkOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type starlarkBoundary struct {
	lifecycle
	cfg     StarlarkConfig
	streams Streams
	prelude starlark.StringDict
}

// starlarkEnv accumulates the globals of every chunk evaluated so far.
// Each chunk sees them as predeclared names.
type starlarkEnv struct {
	thread  *starlark.Thread
	globals starlark.StringDict
	chunks  int
}

func NewStarlark(cfg StarlarkConfig, streams Streams) Boundary {
	return &starlarkBoundary{cfg: cfg, streams: streams.normalize()}
}

func (b *starlarkBoundary) Name() string {
	return "starlark"
}

func (b *starlarkBoundary) Initialize(ctx context.Context) (err error) {
	if err := b.beginInit(); err != nil {
		return err
	}
	defer func() { b.finishInit(err) }()

	globals := starlark.StringDict{}
	thread := &starlark.Thread{Name: "prelude"}
	for i, chunk := range b.cfg.Prelude {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs, err := starlark.ExecFileOptions(starlarkOptions, thread, fmt.Sprintf("prelude-%d.star", i), chunk, globals)
		if err != nil {
			return fmt.Errorf("prelude %d: %w", i, err)
		}
		for name, v := range defs {
			globals[name] = v
		}
	}
	b.prelude = globals
	return ctx.Err()
}

func (b *starlarkBoundary) CreateEnvironment() (Environment, error) {
	if err := b.beginCreate(); err != nil {
		return nil, err
	}
	globals := make(starlark.StringDict, len(b.prelude)+1)
	for name, v := range b.prelude {
		globals[name] = v
	}
	argv := make([]starlark.Value, len(b.cfg.Args))
	for i, arg := range b.cfg.Args {
		argv[i] = starlark.String(arg)
	}
	globals["ARGV"] = starlark.NewList(argv)
	thread := &starlark.Thread{
		Name: "console",
		Print: func(_ *starlark.Thread, msg string) {
			reportf(b.streams.Stdout, "%s", msg)
		},
	}
	return &starlarkEnv{thread: thread, globals: globals}, nil
}

func (b *starlarkBoundary) EvaluateString(source string, env Environment) Result {
	e, ok := env.(*starlarkEnv)
	if !ok || e == nil {
		reportf(b.streams.Stderr, "starlark: foreign environment %T", env)
		return Unit
	}
	e.chunks++
	filename := fmt.Sprintf("<console:%d>", e.chunks)

	v, err := starlark.EvalOptions(starlarkOptions, e.thread, filename, source, e.globals)
	if err == nil {
		if v == nil || v == starlark.None {
			return Unit
		}
		return Value(v.String())
	}
	var parseErr syntax.Error
	if !errors.As(err, &parseErr) {
		b.report(err)
		return Unit
	}
	// Not an expression; run it as statements and keep the new bindings.
	// Program.Init leaves the globals unfrozen so later chunks can mutate them.
	_, prog, err := starlark.SourceProgramOptions(starlarkOptions, filename, source, e.globals.Has)
	if err != nil {
		b.report(err)
		return Unit
	}
	defs, err := prog.Init(e.thread, e.globals)
	for name, v := range defs {
		e.globals[name] = v
	}
	if err != nil {
		b.report(err)
	}
	return Unit
}

func (b *starlarkBoundary) report(err error) {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		reportf(b.streams.Stderr, "%s", evalErr.Backtrace())
		return
	}
	reportf(b.streams.Stderr, "%v", err)
}
