package evaluator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Packages a Go console may import when no allow-list is configured.
var defaultGoPackages = []string{
	"bytes", "errors", "fmt", "math", "regexp", "sort",
	"strconv", "strings", "time", "unicode", "encoding/json",
}

// ErrUntrusted is returned by the registry for a go evaluator whose config
// does not set trusted. Interpreted Go runs on the host stack with no depth
// limit, so unbounded recursion aborts the whole process.
var ErrUntrusted = errors.New(`go evaluator requires "trusted": true`)

type GoConfig struct {
	Packages []string `json:"packages"`
	Prelude  []string `json:"prelude"`
	Trusted  bool     `json:"trusted"`
	Args     []string `json:"args"`
}

func init() {
	Register("go", func(args interface{}, streams Streams) (Boundary, error) {
		var cfg GoConfig
		if err := decodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		if !cfg.Trusted {
			return nil, ErrUntrusted
		}
		return NewGo(cfg, streams), nil
	})
}

type goBoundary struct {
	lifecycle
	cfg     GoConfig
	streams Streams
	symbols interp.Exports
}

type goEnv struct {
	interp *interp.Interpreter
}

func NewGo(cfg GoConfig, streams Streams) Boundary {
	if len(cfg.Packages) == 0 {
		cfg.Packages = defaultGoPackages
	}
	return &goBoundary{cfg: cfg, streams: streams.normalize()}
}

func (b *goBoundary) Name() string {
	return "go"
}

func (b *goBoundary) Initialize(ctx context.Context) (err error) {
	if err := b.beginInit(); err != nil {
		return err
	}
	defer func() { b.finishInit(err) }()

	b.symbols = filterSymbols(stdlib.Symbols, b.cfg.Packages)
	if len(b.cfg.Prelude) == 0 {
		return ctx.Err()
	}
	scratch, err := b.newInterpreter(Streams{}.normalize())
	if err != nil {
		return err
	}
	if _, err := scratch.Eval(argvDecl(b.cfg.Args)); err != nil {
		return fmt.Errorf("bind ARGV: %w", err)
	}
	for i, chunk := range b.cfg.Prelude {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := scratch.Eval(chunk); err != nil {
			return fmt.Errorf("prelude %d: %w", i, err)
		}
	}
	return nil
}

func (b *goBoundary) CreateEnvironment() (Environment, error) {
	if err := b.beginCreate(); err != nil {
		return nil, err
	}
	i, err := b.newInterpreter(b.streams)
	if err != nil {
		return nil, err
	}
	if _, err := i.Eval(argvDecl(b.cfg.Args)); err != nil {
		return nil, fmt.Errorf("bind ARGV: %w", err)
	}
	for idx, chunk := range b.cfg.Prelude {
		if _, err := i.Eval(chunk); err != nil {
			return nil, fmt.Errorf("prelude %d: %w", idx, err)
		}
	}
	return &goEnv{interp: i}, nil
}

func (b *goBoundary) EvaluateString(source string, env Environment) (res Result) {
	e, ok := env.(*goEnv)
	if !ok || e == nil {
		reportf(b.streams.Stderr, "go: foreign environment %T", env)
		return Unit
	}
	defer func() {
		if r := recover(); r != nil {
			reportf(b.streams.Stderr, "panic: %v", r)
			res = Unit
		}
	}()
	v, err := e.interp.Eval(source)
	if err != nil {
		reportf(b.streams.Stderr, "%v", err)
		return Unit
	}
	return displayReflect(v)
}

func (b *goBoundary) newInterpreter(streams Streams) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		Stdout: streams.Stdout,
		Stderr: streams.Stderr,
	})
	if err := i.Use(b.symbols); err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	return i, nil
}

func argvDecl(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = strconv.Quote(arg)
	}
	return "var ARGV = []string{" + strings.Join(quoted, ", ") + "}"
}

func displayReflect(v reflect.Value) Result {
	if !v.IsValid() || !v.CanInterface() {
		return Unit
	}
	switch v.Kind() {
	case reflect.Func:
		return Unit
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return Value("nil")
		}
	}
	return Value(fmt.Sprintf("%v", v.Interface()))
}

// filterSymbols keeps the export entries whose import path is allowed.
// stdlib keys look like "strings/strings".
func filterSymbols(all interp.Exports, allowed []string) interp.Exports {
	allow := make(map[string]struct{}, len(allowed))
	for _, p := range allowed {
		allow[strings.TrimSpace(p)] = struct{}{}
	}
	out := make(interp.Exports, len(allow))
	for key, syms := range all {
		path := key
		if idx := strings.LastIndex(key, "/"); idx > 0 {
			path = key[:idx]
		}
		if _, ok := allow[path]; ok {
			out[key] = syms
		}
	}
	return out
}
