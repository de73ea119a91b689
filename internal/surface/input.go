package surface

import (
	"errors"
	"sync"
)

// ErrInert is returned when an input is fired before anything subscribed to it.
var ErrInert = errors.New("input surface is inert")

type TriggerKind int

const (
	FormSubmit TriggerKind = iota
	Activate
)

func (k TriggerKind) String() string {
	switch k {
	case FormSubmit:
		return "submit"
	case Activate:
		return "activate"
	default:
		return "unknown"
	}
}

// TriggerEvent is one discrete user action. Value holds the input text at the
// moment the event fired.
type TriggerEvent struct {
	Kind  TriggerKind
	Value string

	revision  uint64
	mu        sync.Mutex
	prevented bool
	outcome   any
	done      chan struct{}
}

func (e *TriggerEvent) PreventDefault() {
	e.mu.Lock()
	e.prevented = true
	e.mu.Unlock()
}

func (e *TriggerEvent) DefaultPrevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevented
}

// SetOutcome attaches whatever the listener produced for this event.
func (e *TriggerEvent) SetOutcome(v any) {
	e.mu.Lock()
	e.outcome = v
	e.mu.Unlock()
}

func (e *TriggerEvent) Outcome() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Done is closed once the listener finished handling the event.
func (e *TriggerEvent) Done() <-chan struct{} {
	return e.done
}

// Complete marks the event handled. Safe to call more than once.
func (e *TriggerEvent) Complete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

// Listener receives trigger events. It must not block: it runs with the input
// locked. A returned error rejects the event.
type Listener func(ev *TriggerEvent) error

// Input is a text field plus its triggering control.
type Input struct {
	mu       sync.Mutex
	value    string
	revision uint64
	listener Listener
}

func NewInput() *Input {
	return &Input{}
}

func (in *Input) Value() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

func (in *Input) SetValue(v string) {
	in.mu.Lock()
	in.value = v
	in.revision++
	in.mu.Unlock()
}

// Subscribe arms the input. A later call replaces the listener.
func (in *Input) Subscribe(fn Listener) {
	in.mu.Lock()
	in.listener = fn
	in.mu.Unlock()
}

func (in *Input) Armed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.listener != nil
}

// Fire raises a trigger event carrying the current text. Listeners run under
// the input lock so they observe events in arrival order.
func (in *Input) Fire(kind TriggerKind) (*TriggerEvent, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.fireLocked(kind)
}

// Submit types text into the field and fires in one step.
func (in *Input) Submit(text string, kind TriggerKind) (*TriggerEvent, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listener == nil {
		return nil, ErrInert
	}
	in.value = text
	in.revision++
	return in.fireLocked(kind)
}

func (in *Input) fireLocked(kind TriggerKind) (*TriggerEvent, error) {
	if in.listener == nil {
		return nil, ErrInert
	}
	ev := &TriggerEvent{
		Kind:     kind,
		Value:    in.value,
		revision: in.revision,
		done:     make(chan struct{}),
	}
	if err := in.listener(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Clear empties the field unless it was edited after ev fired.
func (in *Input) Clear(ev *TriggerEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if ev != nil && in.revision != ev.revision {
		return
	}
	in.value = ""
	in.revision++
}
