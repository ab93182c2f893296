package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/kaiwa/internal/concurrency"
	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/logger"
	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/stream"
	"github.com/harunnryd/kaiwa/internal/tool"
	"github.com/harunnryd/kaiwa/internal/wire"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultMaxToolRounds = 8
	DefaultIdleTimeout   = 60 * time.Second
	DefaultEventBuffer   = 64

	userAgent = "kaiwa (go)"
)

type Config struct {
	Endpoint string
	APIKey   string
	// Flavor selects the wire generation, "v2" (default) or "v1".
	Flavor  string
	Request wire.Options

	ResponseHeaderTimeout time.Duration
	// MaxToolRounds bounds continuation requests per exchange.
	MaxToolRounds int
	// IdleTimeout fails a stream that delivers no bytes for this long. Negative disables.
	IdleTimeout time.Duration
	EventBuffer int
	MaxParallel int

	// Optional overrides.
	HTTPClient *http.Client
	Cache      tool.ResultCache
}

// Client runs streaming exchanges against a chat completions endpoint, one
// at a time. The tool result cache outlives individual exchanges.
type Client struct {
	cfg        Config
	http       *http.Client
	builder    wire.Builder
	dialect    stream.Dialect
	dispatcher *tool.Dispatcher
	errs       *kaiwaErrors.DefaultErrorMapper

	mu     sync.Mutex
	active *exchange
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, kaiwaErrors.InvalidInput("client: endpoint is required")
	}

	builder, err := wire.NewBuilder(cfg.Flavor, cfg.Request)
	if err != nil {
		return nil, fmt.Errorf("client: %w: %w", kaiwaErrors.ErrInvalidInput, err)
	}
	dialect, err := stream.DialectFor(cfg.Flavor)
	if err != nil {
		return nil, fmt.Errorf("client: %w: %w", kaiwaErrors.ErrInvalidInput, err)
	}

	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newStreamingHTTPClient(cfg.ResponseHeaderTimeout)
	}

	var opts []tool.DispatcherOption
	if cfg.MaxParallel > 0 {
		opts = append(opts, tool.WithMaxParallel(cfg.MaxParallel))
	}

	return &Client{
		cfg:        cfg,
		http:       httpClient,
		builder:    builder,
		dialect:    dialect,
		dispatcher: tool.NewDispatcher(cfg.Cache, opts...),
		errs:       kaiwaErrors.NewDefaultErrorMapper(),
	}, nil
}

// Cache exposes the tool result cache shared by all exchanges.
func (c *Client) Cache() tool.ResultCache {
	return c.dispatcher.Cache()
}

// State is the state of the active exchange, StateIdle when there is none.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.State().Terminal() {
		return StateIdle
	}
	return c.active.State()
}

// Start begins a new exchange for history, the full conversation including
// the newest user turn. A running exchange is cancelled first.
func (c *Client) Start(ctx context.Context, history []contract.Turn, tools []tool.Definition) (*Stream, error) {
	if len(history) == 0 {
		return nil, kaiwaErrors.InvalidInput("history is empty")
	}
	for i, turn := range history {
		if !turn.Role.Valid() {
			return nil, kaiwaErrors.InvalidInput(fmt.Sprintf("turn %d has unknown role %q", i, turn.Role))
		}
	}

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kaiwaErrors.ErrInvalidInput, err)
	}

	turns := make([]contract.Turn, len(history))
	copy(turns, history)

	ex := newExchange(ctx, c.cfg.EventBuffer)

	c.mu.Lock()
	prev := c.active
	c.active = ex
	c.mu.Unlock()

	if prev != nil {
		slog.Info("Superseding exchange", "previous", prev.id, "exchange_id", ex.id)
		prev.abort()
	}

	ex.setState(StateSending)
	concurrency.SafeGo("exchange-"+ex.id, func() {
		c.run(ex, turns, registry)
	}, func(err error) {
		ex.fail(fmt.Errorf("%w: %w", kaiwaErrors.ErrInternal, err))
		c.release(ex)
	})

	return &Stream{ex: ex, client: c}, nil
}

// Cancel stops the active exchange. Without one it does nothing.
func (c *Client) Cancel() {
	c.mu.Lock()
	ex := c.active
	c.active = nil
	c.mu.Unlock()

	if ex != nil {
		slog.Info("Cancelling exchange", "exchange_id", ex.id)
		ex.abort()
	}
}

func (c *Client) cancelExchange(ex *exchange) {
	c.mu.Lock()
	if c.active == ex {
		c.active = nil
	}
	c.mu.Unlock()
	ex.abort()
}

func (c *Client) release(ex *exchange) {
	c.mu.Lock()
	if c.active == ex {
		c.active = nil
	}
	c.mu.Unlock()
}

func (c *Client) run(ex *exchange, turns []contract.Turn, registry *tool.Registry) {
	defer c.release(ex)

	specs := registry.Specs()
	body, err := c.builder.Initial(turns, specs)
	if err != nil {
		ex.fail(fmt.Errorf("build request: %w: %w", kaiwaErrors.ErrInvalidInput, err))
		return
	}

	for round := 0; ; round++ {
		ctx := logger.WithTraceID(ex.ctx, strings.ToLower(ulid.Make().String()))

		ended, err := c.roundTrip(ctx, ex, body)
		if ex.ctx.Err() != nil {
			ex.settle()
			return
		}
		if err != nil {
			slog.Warn("Round failed", append(logger.Attrs(ctx), "round", round, "category", c.errs.Category(err), "retryable", kaiwaErrors.IsRetryable(err))...)
			ex.fail(err)
			return
		}

		if len(ended.ToolCalls) == 0 {
			slog.Debug("Exchange completed", append(logger.Attrs(ctx), "rounds", round)...)
			ex.complete()
			return
		}
		if round >= c.cfg.MaxToolRounds {
			ex.fail(fmt.Errorf("%d continuation rounds: %w", c.cfg.MaxToolRounds, kaiwaErrors.ErrToolLoopExceeded))
			return
		}

		ex.setState(StateToolDispatch)
		echo := ended.EchoCalls()
		results := c.dispatcher.Dispatch(ctx, ended.ToolCalls, registry)
		if ex.ctx.Err() != nil {
			// results of a cancelled round are dropped
			ex.settle()
			return
		}
		logResults(ctx, round, results)

		body, err = c.builder.Continuation(turns, echo, results, specs)
		if err != nil {
			ex.fail(fmt.Errorf("build continuation: %w: %w", kaiwaErrors.ErrInternal, err))
			return
		}
		turns = wire.Extend(turns, echo, results)
	}
}

func logResults(ctx context.Context, round int, results []contract.ToolResult) {
	var cached, failed int
	for _, r := range results {
		if r.Cached {
			cached++
		}
		if r.Failed {
			failed++
		}
		slog.Debug("Tool result", append(logger.Attrs(ctx), "tool", r.Name, "arguments", r.Arguments, "cached", r.Cached, "failed", r.Failed)...)
	}
	slog.Info("Tool round dispatched", append(logger.Attrs(ctx), "round", round, "calls", len(results), "cached", cached, "failed", failed)...)
}

// roundTrip sends one request and decodes its stream, forwarding text as it
// arrives. It returns the terminal StreamEnded of that stream. ctx carries the
// exchange's cancellation plus per-round log attributes.
func (c *Client) roundTrip(ctx context.Context, ex *exchange, body []byte) (stream.StreamEnded, error) {
	var ended stream.StreamEnded
	ex.setState(StateSending)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return ended, fmt.Errorf("create request: %w: %w", kaiwaErrors.ErrInvalidInput, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson")
	req.Header.Set("User-Agent", userAgent)

	slog.Debug("Sending request", append(logger.Attrs(ctx), "endpoint", c.cfg.Endpoint, "flavor", c.builder.Flavor(), "bytes", len(body))...)

	resp, err := c.http.Do(req)
	if err != nil {
		return ended, c.errs.MapError(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return ended, kaiwaErrors.HTTPStatus(resp.StatusCode, string(raw))
	}

	ex.setState(StateStreaming)

	var reader io.Reader = resp.Body
	var idle *idleReader
	if c.cfg.IdleTimeout > 0 {
		idle = newIdleReader(resp.Body, c.cfg.IdleTimeout, func() {
			ex.cancel(fmt.Errorf("no data for %s: %w", c.cfg.IdleTimeout, kaiwaErrors.ErrIdleTimeout))
		})
		defer idle.stop()
		reader = idle
	}

	decoder := stream.NewDecoder(c.dialect)
	err = decoder.Decode(ctx, reader, func(ev stream.Event) error {
		switch e := ev.(type) {
		case stream.TextDelta:
			// time spent waiting on the consumer is not server silence
			if idle != nil {
				idle.pause()
				defer idle.resume()
			}
			return ex.emitText(e.Text)
		case stream.ToolCallStarted:
			slog.Debug("Tool call started", append(logger.Attrs(ctx), "index", e.Index, "id", e.ID, "tool", e.Name)...)
		case stream.StreamEnded:
			ended = e
		}
		return nil
	})
	if skipped := decoder.Skipped(); skipped > 0 {
		slog.Warn("Skipped malformed stream lines", append(logger.Attrs(ctx), "count", skipped)...)
	}
	if err != nil {
		slog.Debug("Stream interrupted", append(logger.Attrs(ctx), "terminal", decoder.Done(), "error", err)...)
		return ended, kaiwaErrors.Transport("read stream", err)
	}
	return ended, nil
}
