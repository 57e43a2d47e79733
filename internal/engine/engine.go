package engine

import (
	"context"
	"errors"
	"log/slog"
)

// Handler reacts to lifecycle triggers. Provider and Consumer implement it.
type Handler interface {
	// Name identifies the handler in logs and errors.
	Name() string
	HandleTrigger(ctx context.Context, t Trigger) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Label string
	Fn    func(ctx context.Context, t Trigger) error
}

func (h HandlerFunc) Name() string { return h.Label }

func (h HandlerFunc) HandleTrigger(ctx context.Context, t Trigger) error { return h.Fn(ctx, t) }

// Engine is the single-writer trigger dispatcher.
//
// Thread-safety model:
//   - Enqueue and Stop: safe from any goroutine
//   - Dispatch, Drain and Run: one goroutine at a time
//   - Register: before dispatching starts
type Engine struct {
	clock    Sequencer
	ids      TriggerIDGenerator
	handlers []Handler
	queue    *triggerQueue
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the logical clock (default NewClock()).
func WithClock(c Sequencer) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the trigger ID generator (default UUIDv7Generator).
func WithIDGenerator(g TriggerIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with no handlers.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		queue:  newTriggerQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register appends handlers. Dispatch order is registration order.
func (e *Engine) Register(handlers ...Handler) {
	e.handlers = append(e.handlers, handlers...)
}

// Handlers returns registered handler names in dispatch order.
func (e *Engine) Handlers() []string {
	names := make([]string, len(e.handlers))
	for i, h := range e.handlers {
		names[i] = h.Name()
	}
	return names
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// Dispatch stamps t and runs every handler on it before returning.
//
// Handler failures do not stop later handlers from seeing the trigger. Each
// failure is logged and returned as a *DispatchError, joined when several
// handlers fail.
func (e *Engine) Dispatch(ctx context.Context, t Trigger) (Trigger, error) {
	if t.ID == "" {
		t.ID = e.ids.Generate()
	}
	t.Seq = e.clock.Next()

	e.logger.Debug("dispatching trigger",
		"trigger", t.String(),
		"trigger_id", t.ID,
		"seq", t.Seq,
	)

	var errs []error
	for _, h := range e.handlers {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		if err := h.HandleTrigger(ctx, t); err != nil {
			de := &DispatchError{Trigger: t, Handler: h.Name(), Err: err}
			e.logger.Error("trigger handler failed",
				"trigger", t.String(),
				"trigger_id", t.ID,
				"handler", h.Name(),
				"error", err,
			)
			errs = append(errs, de)
		}
	}
	return t, errors.Join(errs...)
}

// Enqueue schedules t for the Run loop. Returns false after Stop.
func (e *Engine) Enqueue(t Trigger) bool {
	return e.queue.Enqueue(t)
}

// QueueLen returns the number of pending triggers.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Drain dispatches queued triggers until the queue is empty, including any
// enqueued by handlers along the way. Errors are joined.
func (e *Engine) Drain(ctx context.Context) error {
	var errs []error
	for {
		t, ok := e.queue.TryDequeue()
		if !ok {
			return errors.Join(errs...)
		}
		if _, err := e.Dispatch(ctx, t); err != nil {
			errs = append(errs, err)
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
}

// Run dispatches queued triggers until ctx ends or Stop is called and the
// queue is drained. Handler failures are logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "handlers", len(e.handlers))

	for {
		if ctx.Err() != nil {
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		}
		if t, ok := e.queue.TryDequeue(); ok {
			// Already logged per handler.
			_, _ = e.Dispatch(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once pending triggers are dispatched.
func (e *Engine) Stop() {
	e.queue.Close()
}
