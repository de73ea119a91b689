package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/evaluator"
	"github.com/xxxsen/replconsole/internal/surface"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotReady       = errors.New("session not ready")
	ErrQueueFull      = errors.New("submission queue full")
	ErrClosed         = errors.New("session closed")
)

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Submission is the source text captured from one trigger event.
type Submission struct {
	Seq    uint64    `json:"seq"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
}

// Exchange is everything one submission produced.
type Exchange struct {
	Submission Submission              `json:"submission"`
	Result     evaluator.Result        `json:"result"`
	Records    []surface.OutputRecord `json:"records"`
}

// Controller owns one evaluation environment and feeds it trigger events one
// at a time, in arrival order. The input stays inert until the evaluator has
// initialized and the environment exists.
type Controller struct {
	id       string
	boundary evaluator.Boundary
	input    *surface.Input
	output   *surface.Output

	echo          bool
	onResult      ResultHandler
	onExchange    func(Exchange)
	onStateChange func(State, error)
	queueSize     int
	now           func() time.Time

	state atomic.Int32
	ctx   context.Context
	stop  context.CancelFunc

	// owned by the loop goroutine
	env evaluator.Environment
	seq uint64

	mu       sync.Mutex
	queue    []*surface.TriggerEvent
	closed   bool
	initErr  error
	wake     chan struct{}
	initDone chan error
	ready    chan struct{}
	settled  chan struct{}
	done     chan struct{}
	closeMu  sync.Once
}

type Option func(*Controller)

func WithID(id string) Option {
	return func(c *Controller) {
		c.id = id
	}
}

// WithEcho renders each submission to the output before it is evaluated.
func WithEcho(echo bool) Option {
	return func(c *Controller) {
		c.echo = echo
	}
}

func WithResultHandler(h ResultHandler) Option {
	return func(c *Controller) {
		if h != nil {
			c.onResult = h
		}
	}
}

// WithQueueSize caps how many trigger events may wait behind the one being
// evaluated. Zero means unbounded.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		c.queueSize = n
	}
}

func WithExchangeObserver(fn func(Exchange)) Option {
	return func(c *Controller) {
		c.onExchange = fn
	}
}

func WithStateObserver(fn func(State, error)) Option {
	return func(c *Controller) {
		c.onStateChange = fn
	}
}

func New(boundary evaluator.Boundary, input *surface.Input, output *surface.Output, opts ...Option) *Controller {
	c := &Controller{
		boundary: boundary,
		input:    input,
		output:   output,
		onResult: DiscardResult,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		initDone: make(chan error, 1),
		ready:    make(chan struct{}),
		settled:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Ready is closed once the environment exists and the input is armed.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until startup either armed the input or failed.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.settled:
		return c.Err()
	case <-c.done:
		select {
		case <-c.settled:
			return c.Err()
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err reports why startup failed, if it did.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErr
}

func (c *Controller) Input() *surface.Input {
	return c.input
}

func (c *Controller) Output() *surface.Output {
	return c.output
}

// Start begins evaluator initialization. It may only be called once.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.ctx, c.stop = context.WithCancel(ctx)
	c.mu.Unlock()
	c.notifyState(StateInitializing, nil)
	c.logger().Info("session initializing", zap.String("evaluator", c.boundary.Name()))

	go func() {
		c.initDone <- c.boundary.Initialize(c.ctx)
	}()
	go c.loop()
	return nil
}

// Submit types text into the input, fires a form submission and waits for
// the exchange it produced.
func (c *Controller) Submit(ctx context.Context, text string) (Exchange, error) {
	ev, err := c.input.Submit(text, surface.FormSubmit)
	if err != nil {
		if errors.Is(err, surface.ErrInert) {
			return Exchange{}, ErrNotReady
		}
		return Exchange{}, err
	}
	return Await(ctx, ev)
}

// Await blocks until ev has been handled by a controller.
func Await(ctx context.Context, ev *surface.TriggerEvent) (Exchange, error) {
	select {
	case <-ev.Done():
		x, ok := ev.Outcome().(Exchange)
		if !ok {
			return Exchange{}, ErrClosed
		}
		return x, nil
	case <-ctx.Done():
		return Exchange{}, ctx.Err()
	}
}

// Close tears the session down. Queued events are dropped unhandled.
func (c *Controller) Close() {
	c.closeMu.Do(func() {
		c.mu.Lock()
		c.closed = true
		stop := c.stop
		c.mu.Unlock()
		c.drop()
		if stop == nil {
			close(c.done)
			return
		}
		stop()
		<-c.done
	})
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.drop()
			return
		case err := <-c.initDone:
			if c.ctx.Err() != nil {
				c.drop()
				return
			}
			if !c.arm(err) {
				return
			}
		case <-c.wake:
			for {
				ev := c.next()
				if ev == nil {
					break
				}
				c.handle(ev)
			}
		}
	}
}

// arm performs the Initializing -> Ready transition.
func (c *Controller) arm(initErr error) bool {
	defer close(c.settled)
	if initErr != nil {
		c.fail(initErr)
		return false
	}
	env, err := c.boundary.CreateEnvironment()
	if err != nil {
		c.fail(err)
		return false
	}
	c.env = env
	c.input.Subscribe(c.enqueue)
	c.state.Store(int32(StateReady))
	close(c.ready)
	c.notifyState(StateReady, nil)
	c.logger().Info("session ready")
	return true
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.initErr = err
	c.mu.Unlock()
	c.notifyState(StateInitializing, err)
	c.logger().Error("session startup failed, input stays inert", zap.Error(err))
}

func (c *Controller) enqueue(ev *surface.TriggerEvent) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.queueSize > 0 && len(c.queue) >= c.queueSize {
		c.mu.Unlock()
		return ErrQueueFull
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Controller) next() *surface.TriggerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return nil
	}
	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return ev
}

func (c *Controller) drop() {
	c.mu.Lock()
	dropped := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, ev := range dropped {
		ev.Complete()
	}
}

// handle runs one trigger event to completion.
func (c *Controller) handle(ev *surface.TriggerEvent) {
	if ev.Kind == surface.FormSubmit {
		ev.PreventDefault()
	}
	c.seq++
	sub := Submission{Seq: c.seq, Source: ev.Value, Time: c.now()}
	mark := c.output.LastSeq()

	if c.echo {
		c.output.Prepend(surface.KindPrompt, sub.Source)
	}
	res := c.boundary.EvaluateString(sub.Source, c.env)
	c.onResult(c.ctx, c.output, sub, res)
	c.input.Clear(ev)

	x := Exchange{Submission: sub, Result: res, Records: c.output.Since(mark)}
	c.logger().Debug("submission evaluated",
		zap.Uint64("seq", sub.Seq),
		zap.Int("source_len", len(sub.Source)),
		zap.Bool("has_value", res.HasValue),
	)
	if c.onExchange != nil {
		c.onExchange(x)
	}
	ev.SetOutcome(x)
	ev.Complete()
}

func (c *Controller) notifyState(s State, err error) {
	if c.onStateChange != nil {
		c.onStateChange(s, err)
	}
}

func (c *Controller) logger() *zap.Logger {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return logutil.GetLogger(ctx).With(zap.String("session_id", c.id))
}
