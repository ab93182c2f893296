package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/mockapi"
	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func setup(t *testing.T, cfg Config, responses ...mockapi.Response) (*Client, *mockapi.Server) {
	t.Helper()
	srv := mockapi.New(mockapi.Script(responses...))
	srv.ChunkSize = 7
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg.Endpoint = ts.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, srv
}

func userTurn(text string) []contract.Turn {
	return []contract.Turn{{Role: contract.RoleUser, Content: text}}
}

func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	for s.Next() {
		events = append(events, s.Current())
	}
	return events
}

func texts(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == EventText {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func weatherTool(calls *atomic.Int32) tool.Definition {
	return tool.Definition{
		Name:        "get_weather",
		Description: "Weather for a city",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
			"required": []string{"city"},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			calls.Add(1)
			return map[string]interface{}{"city": args["city"], "sky": "sunny"}, nil
		},
	}
}

func TestClient_PlainAnswer(t *testing.T) {
	c, srv := setup(t, Config{}, mockapi.Response{Lines: []string{
		`{"type":"content-delta","delta":{"message":{"content":{"text":"Hello"}}}}`,
		`{"type":"content-delta","delta":{"message":{"content":{"text":" world"}}}}`,
		`{"type":"stream-end"}`,
	}})

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, []Event{
		{Kind: EventText, Text: "Hello"},
		{Kind: EventText, Text: " world"},
		{Kind: EventComplete},
	}, events)
	assert.NoError(t, s.Err())
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, StateIdle, c.State())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer test-key", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.True(t, gjson.GetBytes(reqs[0].Body, "stream").Bool())
	assert.False(t, gjson.GetBytes(reqs[0].Body, "tools").Exists())
}

func TestClient_SingleToolRoundTrip(t *testing.T) {
	var calls atomic.Int32
	c, srv := setup(t, Config{},
		mockapi.Response{Lines: mockapi.ToolCalls("Checking. ", mockapi.Call{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Rome"}`})},
		mockapi.Response{Lines: mockapi.Answer("It is ", "sunny in Rome.")},
	)

	s, err := c.Start(context.Background(), userTurn("weather in Rome?"), []tool.Definition{weatherTool(&calls)})
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, "Checking. It is sunny in Rome.", texts(events))
	assert.Equal(t, EventComplete, events[len(events)-1].Kind)
	assert.Equal(t, int32(1), calls.Load())

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "get_weather", gjson.GetBytes(reqs[0].Body, "tools.0.function.name").String())

	messages := gjson.GetBytes(reqs[1].Body, "messages").Array()
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].Get("role").String())
	assert.Equal(t, "call_1", messages[1].Get("tool_calls.0.id").String())
	assert.Equal(t, "get_weather", messages[1].Get("tool_calls.0.function.name").String())
	assert.Equal(t, `{"city":"Rome"}`, messages[1].Get("tool_calls.0.function.arguments").String())
	assert.Equal(t, "tool", messages[2].Get("role").String())
	assert.Equal(t, "call_1", messages[2].Get("tool_call_id").String())
	assert.JSONEq(t, `[{"city":"Rome","sky":"sunny"}]`, messages[2].Get("content").String())
	assert.Equal(t, 1, c.Cache().Len())
}

func TestClient_UnregisteredTool(t *testing.T) {
	c, srv := setup(t, Config{},
		mockapi.Response{Lines: mockapi.ToolCalls("", mockapi.Call{ID: "call_x", Name: "lookup_payroll", Arguments: ""})},
		mockapi.Response{Lines: mockapi.Answer("Sorry, I cannot do that.")},
	)

	s, err := c.Start(context.Background(), userTurn("payroll?"), nil)
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, "Sorry, I cannot do that.", texts(events))
	assert.Equal(t, EventComplete, events[len(events)-1].Kind)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, `{"error":"Tool lookup_payroll not found"}`,
		gjson.GetBytes(reqs[1].Body, "messages.2.content").String())
	assert.Equal(t, "{}", gjson.GetBytes(reqs[1].Body, "messages.1.tool_calls.0.function.arguments").String())
	assert.Equal(t, 0, c.Cache().Len())
}

func TestClient_CancelMidStream(t *testing.T) {
	c, _ := setup(t, Config{}, mockapi.Response{
		Lines: []string{mockapi.ContentDelta("first"), mockapi.ContentDelta("second")},
		Hold:  true,
	})

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	require.True(t, s.Next())
	assert.Equal(t, Event{Kind: EventText, Text: "first"}, s.Current())

	c.Cancel()
	c.Cancel()

	var rest []Event
	for s.Next() {
		rest = append(rest, s.Current())
	}
	assert.Equal(t, []Event{{Kind: EventComplete}}, rest)
	assert.NoError(t, s.Err())
	assert.Equal(t, StateCancelled, s.State())
	assert.False(t, s.Next())
}

func TestClient_CancelDuringToolDispatch(t *testing.T) {
	c, srv := setup(t, Config{},
		mockapi.Response{Lines: mockapi.ToolCalls("", mockapi.Call{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`})},
		mockapi.Response{Lines: mockapi.Answer("never sent")},
	)

	started := make(chan struct{})
	release := make(chan struct{})
	slow := tool.Definition{
		Name:       "get_weather",
		Parameters: map[string]interface{}{"type": "object"},
		Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
			close(started)
			<-release
			return map[string]interface{}{"sky": "grey"}, nil
		},
	}

	s, err := c.Start(context.Background(), userTurn("weather in Oslo?"), []tool.Definition{slow})
	require.NoError(t, err)

	<-started
	require.Eventually(t, func() bool { return c.State() == StateToolDispatch }, time.Second, 5*time.Millisecond)

	c.Cancel()
	close(release)

	assert.Equal(t, []Event{{Kind: EventComplete}}, collect(t, s))
	assert.NoError(t, s.Err())
	assert.Equal(t, StateCancelled, s.State())
	assert.Len(t, srv.Requests(), 1, "no continuation after cancel")
	assert.Equal(t, 0, c.Cache().Len(), "results of a cancelled round are not cached")
}

func TestClient_CancelWithoutExchange(t *testing.T) {
	c, _ := setup(t, Config{})
	assert.NotPanics(t, c.Cancel)
	assert.Equal(t, StateIdle, c.State())
}

func TestClient_StartSupersedesActiveExchange(t *testing.T) {
	c, srv := setup(t, Config{},
		mockapi.Response{Lines: []string{mockapi.ContentDelta("old")}, Hold: true},
		mockapi.Response{Lines: mockapi.Answer("new")},
	)

	first, err := c.Start(context.Background(), userTurn("one"), nil)
	require.NoError(t, err)
	require.True(t, first.Next())
	assert.Equal(t, "old", first.Current().Text)

	second, err := c.Start(context.Background(), userTurn("two"), nil)
	require.NoError(t, err)

	assert.Equal(t, []Event{{Kind: EventComplete}}, collect(t, first))
	assert.Equal(t, StateCancelled, first.State())

	events := collect(t, second)
	assert.Equal(t, "new", texts(events))
	assert.Equal(t, EventComplete, events[len(events)-1].Kind)
	assert.Len(t, srv.Requests(), 2)
}

func TestClient_ParentContextCancelled(t *testing.T) {
	c, _ := setup(t, Config{}, mockapi.Response{Lines: []string{mockapi.ContentDelta("a")}, Hold: true})

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Start(ctx, userTurn("hi"), nil)
	require.NoError(t, err)
	require.True(t, s.Next())

	cancel()

	assert.Equal(t, []Event{{Kind: EventComplete}}, collect(t, s))
	assert.Equal(t, StateCancelled, s.State())
}

func TestClient_NonSuccessStatus(t *testing.T) {
	c, _ := setup(t, Config{}, mockapi.Response{Status: http.StatusUnauthorized, Body: `{"message":"invalid api token"}`})

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	events := collect(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.ErrorIs(t, s.Err(), kaiwaErrors.ErrHTTPStatus)
	assert.Contains(t, s.Err().Error(), "invalid api token")
	assert.Contains(t, s.Err().Error(), "401")
	assert.Equal(t, StateFailed, s.State())
}

func TestClient_TransportError(t *testing.T) {
	c, err := New(Config{Endpoint: "http://127.0.0.1:1/v2/chat"})
	require.NoError(t, err)

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	collect(t, s)
	assert.ErrorIs(t, s.Err(), kaiwaErrors.ErrTransport)
	assert.True(t, kaiwaErrors.IsRetryable(s.Err()))
}

func TestClient_ToolLoopExceeded(t *testing.T) {
	var calls atomic.Int32
	c, srv := setup(t, Config{MaxToolRounds: 2},
		mockapi.Response{Lines: mockapi.ToolCalls("", mockapi.Call{ID: "c", Name: "get_weather", Arguments: `{"city":"Rome"}`})},
	)

	s, err := c.Start(context.Background(), userTurn("loop"), []tool.Definition{weatherTool(&calls)})
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, EventError, events[len(events)-1].Kind)
	assert.ErrorIs(t, s.Err(), kaiwaErrors.ErrToolLoopExceeded)
	assert.Len(t, srv.Requests(), 3)
	// identical arguments in every round hit the cache
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_IdleTimeout(t *testing.T) {
	c, _ := setup(t, Config{IdleTimeout: 50 * time.Millisecond}, mockapi.Response{
		Lines: []string{mockapi.ContentDelta("partial")},
		Hold:  true,
	})

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, "partial", texts(events))
	assert.Equal(t, EventError, events[len(events)-1].Kind)
	assert.ErrorIs(t, s.Err(), kaiwaErrors.ErrIdleTimeout)
	assert.Equal(t, StateFailed, s.State())
}

func TestClient_SlowConsumerIsNotIdle(t *testing.T) {
	chunks := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	c, _ := setup(t, Config{IdleTimeout: 50 * time.Millisecond, EventBuffer: 2}, mockapi.Response{
		Lines: mockapi.Answer(chunks...),
	})

	s, err := c.Start(context.Background(), userTurn("hi"), nil)
	require.NoError(t, err)

	// the event buffer fills and the decode loop blocks well past the idle window
	time.Sleep(200 * time.Millisecond)

	events := collect(t, s)
	assert.Equal(t, strings.Join(chunks, ""), texts(events))
	assert.Equal(t, EventComplete, events[len(events)-1].Kind)
	assert.NoError(t, s.Err())
	assert.Equal(t, StateCompleted, s.State())
}

func TestClient_LegacyFlavor(t *testing.T) {
	var calls atomic.Int32
	c, srv := setup(t, Config{Flavor: "v1"},
		mockapi.Response{Lines: []string{
			`{"is_finished":false,"event_type":"stream-start","generation_id":"g1"}`,
			`{"is_finished":false,"event_type":"tool-calls-generation","tool_calls":[{"name":"get_weather","parameters":{"city":"Rome"}}]}`,
			`{"is_finished":true,"event_type":"stream-end","finish_reason":"COMPLETE"}`,
		}},
		mockapi.Response{Lines: []string{
			`{"is_finished":false,"event_type":"text-generation","text":"Sunny."}`,
			`{"is_finished":true,"event_type":"stream-end","finish_reason":"COMPLETE"}`,
		}},
	)

	s, err := c.Start(context.Background(), userTurn("weather in Rome?"), []tool.Definition{weatherTool(&calls)})
	require.NoError(t, err)

	events := collect(t, s)
	assert.Equal(t, []Event{{Kind: EventText, Text: "Sunny."}, {Kind: EventComplete}}, events)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "weather in Rome?", gjson.GetBytes(reqs[0].Body, "message").String())
	assert.Equal(t, "str", gjson.GetBytes(reqs[0].Body, "tools.0.parameter_definitions.city.type").String())
	assert.Equal(t, "get_weather", gjson.GetBytes(reqs[1].Body, "tool_results.0.call.name").String())
	assert.Equal(t, "sunny", gjson.GetBytes(reqs[1].Body, "tool_results.0.outputs.0.sky").String())
}

func TestClient_StartValidation(t *testing.T) {
	c, _ := setup(t, Config{})

	_, err := c.Start(context.Background(), nil, nil)
	assert.ErrorIs(t, err, kaiwaErrors.ErrInvalidInput)

	_, err = c.Start(context.Background(), []contract.Turn{{Role: "narrator", Content: "x"}}, nil)
	assert.ErrorIs(t, err, kaiwaErrors.ErrInvalidInput)

	var calls atomic.Int32
	_, err = c.Start(context.Background(), userTurn("hi"), []tool.Definition{weatherTool(&calls), weatherTool(&calls)})
	assert.ErrorIs(t, err, kaiwaErrors.ErrInvalidInput)
	assert.True(t, errors.Is(err, tool.ErrDuplicateTool))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, kaiwaErrors.ErrInvalidInput)

	_, err = New(Config{Endpoint: "http://localhost", Flavor: "v7"})
	assert.ErrorIs(t, err, kaiwaErrors.ErrInvalidInput)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogResults_CountsCachedAndFailed(t *testing.T) {
	var buf syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	logResults(context.Background(), 2, []contract.ToolResult{
		{Name: "get_weather", Arguments: `{"city":"Rome"}`, Cached: true},
		{Name: "ghost", Arguments: `{}`, Failed: true},
		{Name: "get_weather", Arguments: `{"city":"Oslo"}`},
	})

	out := buf.String()
	assert.Contains(t, out, `"arguments":"{\"city\":\"Rome\"}"`)
	assert.Contains(t, out, `"msg":"Tool round dispatched","round":2,"calls":3,"cached":1,"failed":1`)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "tool_dispatch", StateToolDispatch.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateStreaming.Terminal())
	assert.Equal(t, "complete", EventComplete.String())
}
