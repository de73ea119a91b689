package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	ErrAlreadyInitialized = errors.New("evaluator already initialized")
	ErrNotInitialized     = errors.New("evaluator not initialized")
	ErrEnvironmentExists  = errors.New("environment already created")
)

// Environment is an opaque handle to the mutable state of one evaluation
// session. Only the Boundary that created it looks inside.
type Environment any

// Result is what EvaluateString hands back. HasValue is false for Unit.
type Result struct {
	Text     string `json:"text"`
	HasValue bool   `json:"has_value"`
}

var Unit = Result{}

func Value(text string) Result {
	return Result{Text: text, HasValue: true}
}

// Streams are the boundary's own channels for visible effects and error
// reports. Evaluation errors go to Stderr and are never returned.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (s Streams) normalize() Streams {
	if s.Stdout == nil {
		s.Stdout = io.Discard
	}
	if s.Stderr == nil {
		s.Stderr = io.Discard
	}
	return s
}

type Boundary interface {
	Name() string
	Initialize(ctx context.Context) error
	CreateEnvironment() (Environment, error)
	EvaluateString(source string, env Environment) Result
}

type Factory func(args interface{}, streams Streams) (Boundary, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(name string, args interface{}, streams Streams) (Boundary, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("evaluator.name is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported evaluator: %s", name)
	}
	return factory(args, streams.normalize())
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode evaluator config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode evaluator config: %w", err)
	}
	return nil
}

// WithArgs returns a copy of a backend config block with "args" set. Every
// backend binds those strings as ARGV in the environments it creates.
func WithArgs(args interface{}, argv []string) (interface{}, error) {
	block := map[string]interface{}{}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode evaluator config: %w", err)
		}
		if err := json.Unmarshal(data, &block); err != nil {
			return nil, fmt.Errorf("evaluator config is not an object: %w", err)
		}
		if block == nil {
			block = map[string]interface{}{}
		}
	}
	if argv == nil {
		argv = []string{}
	}
	block["args"] = argv
	return block, nil
}

// lifecycle tracks the single-shot initialize and single environment rules
// shared by every backend.
type lifecycle struct {
	mu          sync.Mutex
	initStarted bool
	initialized bool
	envCreated  bool
}

func (l *lifecycle) beginInit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initStarted {
		return ErrAlreadyInitialized
	}
	l.initStarted = true
	return nil
}

func (l *lifecycle) finishInit(err error) {
	l.mu.Lock()
	l.initialized = err == nil
	l.mu.Unlock()
}

func (l *lifecycle) beginCreate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	if l.envCreated {
		return ErrEnvironmentExists
	}
	l.envCreated = true
	return nil
}

func reportf(w io.Writer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = io.WriteString(w, msg)
}
