package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/logger"

	"github.com/oklog/ulid/v2"
)

var errCancelled = errors.New("exchange cancelled")

// exchange is the state of one Start call. It owns its cancellation and is
// dropped by the client once terminal.
type exchange struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc

	state     atomic.Int32
	cancelled atomic.Bool

	text     chan Event
	finished chan struct{}
	terminal Event
	once     sync.Once
}

func newExchange(parent context.Context, buffer int) *exchange {
	id := strings.ToLower(ulid.Make().String())
	ctx, cancel := context.WithCancelCause(logger.WithExchangeID(parent, id))
	return &exchange{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		text:     make(chan Event, buffer),
		finished: make(chan struct{}),
	}
}

func (ex *exchange) State() State {
	return State(ex.state.Load())
}

func (ex *exchange) setState(s State) {
	for {
		cur := State(ex.state.Load())
		if cur.Terminal() || cur == s {
			return
		}
		if ex.state.CompareAndSwap(int32(cur), int32(s)) {
			slog.Debug("Exchange state", append(logger.Attrs(ex.ctx), "from", cur.String(), "to", s.String())...)
			return
		}
	}
}

func (ex *exchange) isCancelled() bool {
	return ex.cancelled.Load()
}

// emitText hands a chunk to the caller, giving up when the exchange ends.
func (ex *exchange) emitText(text string) error {
	if ex.isCancelled() {
		return context.Cause(ex.ctx)
	}
	select {
	case ex.text <- Event{Kind: EventText, Text: text}:
		return nil
	case <-ex.ctx.Done():
		return context.Cause(ex.ctx)
	}
}

// finish records the terminal event. Only the first call has an effect.
func (ex *exchange) finish(s State, ev Event) {
	ex.once.Do(func() {
		ex.setState(s)
		ex.terminal = ev
		close(ex.finished)
		ex.cancel(errCancelled)
	})
}

func (ex *exchange) complete() {
	ex.finish(StateCompleted, Event{Kind: EventComplete})
}

func (ex *exchange) fail(err error) {
	slog.Error("Exchange failed", append(logger.Attrs(ex.ctx),
		"category", kaiwaErrors.NewDefaultErrorMapper().Category(err),
		"error", err)...)
	ex.finish(StateFailed, Event{Kind: EventError, Err: err})
}

// abort is the caller-initiated path: no more text, terminal complete.
func (ex *exchange) abort() {
	select {
	case <-ex.finished:
		return
	default:
	}
	ex.cancelled.Store(true)
	ex.cancel(errCancelled)
	ex.finish(StateCancelled, Event{Kind: EventComplete})
}

// settle ends the exchange after its context was cancelled, choosing the
// outcome from the cancellation cause.
func (ex *exchange) settle() {
	cause := context.Cause(ex.ctx)
	switch {
	case errors.Is(cause, kaiwaErrors.ErrIdleTimeout):
		ex.fail(cause)
	case errors.Is(cause, context.DeadlineExceeded):
		ex.fail(kaiwaErrors.Transport("exchange deadline", cause))
	default:
		// explicit cancel, supersession or a cancelled parent
		ex.cancelled.Store(true)
		ex.finish(StateCancelled, Event{Kind: EventComplete})
	}
}
