package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

const defaultMaxCallStack = 10000

type JSConfig struct {
	Prelude []string `json:"prelude"`
	Strict  bool     `json:"strict"`
	// MaxCallStack bounds call depth; zero means defaultMaxCallStack.
	MaxCallStack int      `json:"max_call_stack"`
	Args         []string `json:"args"`
}

func init() {
	Register("js", func(args interface{}, streams Streams) (Boundary, error) {
		var cfg JSConfig
		if err := decodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		return NewJS(cfg, streams), nil
	})
}

type jsBoundary struct {
	lifecycle
	cfg      JSConfig
	streams  Streams
	programs []*goja.Program
}

type jsEnv struct {
	vm *goja.Runtime
}

func NewJS(cfg JSConfig, streams Streams) Boundary {
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = defaultMaxCallStack
	}
	return &jsBoundary{cfg: cfg, streams: streams.normalize()}
}

func (b *jsBoundary) Name() string {
	return "js"
}

func (b *jsBoundary) Initialize(ctx context.Context) (err error) {
	if err := b.beginInit(); err != nil {
		return err
	}
	defer func() { b.finishInit(err) }()

	programs := make([]*goja.Program, 0, len(b.cfg.Prelude))
	for i, chunk := range b.cfg.Prelude {
		if err := ctx.Err(); err != nil {
			return err
		}
		prog, err := goja.Compile(fmt.Sprintf("prelude-%d.js", i), chunk, b.cfg.Strict)
		if err != nil {
			return fmt.Errorf("prelude %d: %w", i, err)
		}
		programs = append(programs, prog)
	}
	b.programs = programs
	return ctx.Err()
}

func (b *jsBoundary) CreateEnvironment() (Environment, error) {
	if err := b.beginCreate(); err != nil {
		return nil, err
	}
	vm := goja.New()
	vm.SetMaxCallStackSize(b.cfg.MaxCallStack)
	if err := b.installConsole(vm); err != nil {
		return nil, err
	}
	for i, prog := range b.programs {
		if _, err := vm.RunProgram(prog); err != nil {
			return nil, fmt.Errorf("prelude %d: %w", i, err)
		}
	}
	return &jsEnv{vm: vm}, nil
}

func (b *jsBoundary) EvaluateString(source string, env Environment) Result {
	e, ok := env.(*jsEnv)
	if !ok || e == nil {
		reportf(b.streams.Stderr, "js: foreign environment %T", env)
		return Unit
	}
	val, err := e.vm.RunString(source)
	if err != nil {
		var overflow *goja.StackOverflowError
		var ex *goja.Exception
		if errors.As(err, &overflow) {
			reportf(b.streams.Stderr, "RangeError: maximum call stack size exceeded")
		} else if errors.As(err, &ex) {
			reportf(b.streams.Stderr, "%s", ex.Error())
		} else {
			reportf(b.streams.Stderr, "%v", err)
		}
		return Unit
	}
	if val == nil || goja.IsUndefined(val) {
		return Unit
	}
	return Value(val.String())
}

func (b *jsBoundary) installConsole(vm *goja.Runtime) error {
	writer := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		reportf(b.streams.Stdout, "%s", strings.Join(args, " "))
		return goja.Undefined()
	}
	errWriter := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		reportf(b.streams.Stderr, "%s", strings.Join(args, " "))
		return goja.Undefined()
	}
	if err := vm.Set("print", writer); err != nil {
		return fmt.Errorf("set print: %w", err)
	}
	console := vm.NewObject()
	if err := console.Set("log", writer); err != nil {
		return fmt.Errorf("set console.log: %w", err)
	}
	if err := console.Set("error", errWriter); err != nil {
		return fmt.Errorf("set console.error: %w", err)
	}
	if err := vm.Set("console", console); err != nil {
		return fmt.Errorf("set console: %w", err)
	}
	argv := make([]interface{}, len(b.cfg.Args))
	for i, arg := range b.cfg.Args {
		argv[i] = arg
	}
	if err := vm.Set("ARGV", vm.NewArray(argv...)); err != nil {
		return fmt.Errorf("set ARGV: %w", err)
	}
	return nil
}
