package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/harunnryd/kaiwa/internal/concurrency"
	"github.com/harunnryd/kaiwa/internal/logger"
	"github.com/harunnryd/kaiwa/internal/model/contract"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type notFoundError struct {
	name string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("Tool %s not found", e.name)
}

func (e *notFoundError) Unwrap() error { return ErrToolNotFound }

// Dispatcher runs the tool calls of one round and produces a result per call.
// Successful results are cached for the lifetime of the dispatcher's cache.
type Dispatcher struct {
	cache       ResultCache
	group       singleflight.Group
	maxParallel int
}

type DispatcherOption func(*Dispatcher)

// WithMaxParallel bounds how many handlers run at once. Zero means no bound.
func WithMaxParallel(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxParallel = n
	}
}

func NewDispatcher(cache ResultCache, opts ...DispatcherOption) *Dispatcher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	d := &Dispatcher{cache: cache}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Cache() ResultCache {
	return d.cache
}

// Dispatch executes calls concurrently and returns once every call has
// settled. Results are in call order. It never fails: missing tools and
// handler errors become {"error": ...} payloads.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []contract.ToolCall, registry *Registry) []contract.ToolResult {
	results := make([]contract.ToolResult, len(calls))

	var g errgroup.Group
	if d.maxParallel > 0 {
		g.SetLimit(d.maxParallel)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.dispatchOne(ctx, call, registry)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call contract.ToolCall, registry *Registry) contract.ToolResult {
	args := CanonicalArguments(call.Arguments)
	key := CacheKey(call.Name, args)
	result := contract.ToolResult{
		ToolCallID: call.ID,
		Name:       NormalizeToolName(call.Name),
		Arguments:  args,
	}

	if content, ok := d.cache.Get(key); ok {
		slog.Debug("Tool cache hit", append(logger.Attrs(ctx), "tool", result.Name)...)
		result.Content = content
		result.Cached = true
		return result
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		if content, ok := d.cache.Get(key); ok {
			return flight{content: content}, nil
		}
		content, err := d.execute(ctx, call.Name, args, registry)
		if ctx.Err() != nil {
			return flight{cancelled: true}, nil
		}
		if err != nil {
			return nil, err
		}
		d.cache.Set(key, content)
		return flight{content: content}, nil
	})
	if err != nil {
		result.Content = errorContent(err)
		result.Failed = true
		return result
	}

	f := v.(flight)
	if f.cancelled {
		if ctx.Err() != nil {
			result.Content = errorContent(ctx.Err())
			result.Failed = true
			return result
		}
		// joined a flight whose caller went away
		slog.Debug("Retrying abandoned tool call", append(logger.Attrs(ctx), "tool", result.Name)...)
		return d.dispatchOne(ctx, call, registry)
	}

	result.Content = f.content
	return result
}

// flight is the outcome shared by callers joined on one cache key.
type flight struct {
	content   string
	cancelled bool
}

func (d *Dispatcher) execute(ctx context.Context, name string, args string, registry *Registry) (content string, err error) {
	def, ok := registry.Get(name)
	if !ok || def.Handler == nil {
		slog.Warn("Tool not found", append(logger.Attrs(ctx), "tool", name)...)
		return "", &notFoundError{name: NormalizeToolName(name)}
	}

	params, err := ParseArguments(args)
	if err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if def.Validate {
		if err := ValidateArgs(def.Parameters, params); err != nil {
			slog.Warn("Tool input validation failed", append(logger.Attrs(ctx), "tool", def.Name, "error", err)...)
			return "", fmt.Errorf("invalid input: %w", err)
		}
	}

	start := time.Now()
	slog.Info("Executing tool", append(logger.Attrs(ctx), "tool", def.Name)...)

	out, err := invoke(ctx, def.Handler, params)
	duration := time.Since(start)
	if err != nil {
		slog.Error("Tool execution failed", append(logger.Attrs(ctx), "tool", def.Name, "error", err, "duration", duration)...)
		return "", err
	}

	content, err = normalizeResult(out)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	slog.Info("Tool execution success", append(logger.Attrs(ctx), "tool", def.Name, "duration", duration)...)
	return content, nil
}

func invoke(ctx context.Context, h Handler, params map[string]interface{}) (out interface{}, err error) {
	defer concurrency.Recover(&err)
	return h(ctx, params)
}

// normalizeResult encodes a handler result as a JSON array, wrapping scalars.
func normalizeResult(v interface{}) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		trimmed := bytes.TrimSpace(raw)
		if !json.Valid(trimmed) {
			return "", fmt.Errorf("handler returned invalid JSON")
		}
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return string(trimmed), nil
		}
		return "[" + string(trimmed) + "]", nil
	}

	if v != nil {
		kind := reflect.TypeOf(v).Kind()
		if (kind == reflect.Slice || kind == reflect.Array) && reflect.TypeOf(v).Elem().Kind() != reflect.Uint8 {
			out, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			if string(out) == "null" {
				return "[]", nil
			}
			return string(out), nil
		}
	}

	out, err := json.Marshal([]interface{}{v})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func errorContent(err error) string {
	out, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return `{"error":"tool failed"}`
	}
	return string(out)
}
