package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/harunnryd/kaiwa/internal/config"
	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/mockapi"
	"github.com/harunnryd/kaiwa/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, tools ...string) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.APIKeyEnvVar, "")

	c, err := config.Load(nil)
	require.NoError(t, err)
	c.Tools.Enabled = tools
	return c
}

func offlineSession(t *testing.T, out *bytes.Buffer, tools ...string) *chatSession {
	t.Helper()
	s, err := newChatSession(context.Background(), testConfig(t, tools...), true, out)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func TestChatSession_OfflineToolRoundTrip(t *testing.T) {
	var out bytes.Buffer
	s := offlineSession(t, &out, "get_employee_detailed_data")

	require.NoError(t, s.ask(context.Background(), "Who is emp-001?"))

	assert.Contains(t, out.String(), "Let me look that up.")
	assert.Contains(t, out.String(), "David Levi")
	require.Len(t, s.history, 2)
	assert.Equal(t, contract.RoleUser, s.history[0].Role)
	assert.Equal(t, "Who is emp-001?", s.history[0].Content)
	assert.Equal(t, contract.RoleAssistant, s.history[1].Role)
	assert.Contains(t, s.history[1].Content, "David Levi")
	assert.Equal(t, 1, s.conn().Cache().Len())
}

func TestChatSession_FailureKeepsHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := mockapi.New(mockapi.Script(mockapi.Response{Status: 401, Body: `{"message":"invalid api token"}`}))
	url, stop, err := srv.Start(ctx)
	require.NoError(t, err)
	defer stop()

	c := testConfig(t)
	c.API.Endpoint = url

	var out bytes.Buffer
	s, err := newChatSession(ctx, c, false, &out)
	require.NoError(t, err)
	defer s.close()

	s.history = []contract.Turn{
		{Role: contract.RoleUser, Content: "hi"},
		{Role: contract.RoleAssistant, Content: "hello"},
	}

	err = s.ask(ctx, "are you there?")
	require.ErrorIs(t, err, kaiwaErrors.ErrHTTPStatus)
	assert.Contains(t, out.String(), "invalid api token")
	assert.NotContains(t, out.String(), "ask again to retry")
	assert.Len(t, s.history, 2, "failed question must not join the history")

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Body), "are you there?")
}

func TestChatSession_RetryableFailureSuggestsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := mockapi.New(mockapi.Script(mockapi.Response{Status: 503, Body: "overloaded"}))
	url, stop, err := srv.Start(ctx)
	require.NoError(t, err)
	defer stop()

	c := testConfig(t)
	c.API.Endpoint = url

	var out bytes.Buffer
	s, err := newChatSession(ctx, c, false, &out)
	require.NoError(t, err)
	defer s.close()

	err = s.ask(ctx, "hello?")
	require.ErrorIs(t, err, kaiwaErrors.ErrHTTPStatus)
	assert.Contains(t, out.String(), "503")
	assert.Contains(t, out.String(), "ask again to retry")
	assert.Empty(t, s.history)
}

func TestChatSession_ClientConfig(t *testing.T) {
	c := testConfig(t)
	c.Exchange.IdleTimeout = "0"
	c.API.Temperature = 0.4

	cc, err := clientConfig(c, "http://localhost/v2/chat")
	require.NoError(t, err)
	assert.Negative(t, int64(cc.IdleTimeout), "zero idle timeout disables the guard")
	require.NotNil(t, cc.Request.Temperature)
	assert.InDelta(t, 0.4, *cc.Request.Temperature, 1e-6)
	assert.Equal(t, config.DefaultSystemPrompt, cc.Request.Preamble)
	assert.Equal(t, config.DefaultAPIModel, cc.Request.Model)

	c.Exchange.IdleTimeout = "soon"
	_, err = clientConfig(c, "http://localhost/v2/chat")
	assert.Error(t, err)
}

func TestEnabledTools_UnknownName(t *testing.T) {
	_, err := enabledTools(testConfig(t, "get_stock_price"))
	assert.Error(t, err)
}

func TestREPL_Commands(t *testing.T) {
	var out bytes.Buffer
	s := offlineSession(t, &out, "get_current_time")

	in := strings.NewReader(strings.Join([]string{
		"/help",
		"/tools",
		"/tools get_current_time",
		"/model",
		"/model command-r",
		"what time is it?",
		"/history",
		"/bogus",
		"/clear",
		"/history",
		"/exit",
		"never read",
	}, "\n") + "\n")

	require.NoError(t, newREPL(s, in, &out).run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Commands:")
	assert.Contains(t, text, "get_current_time")
	assert.Contains(t, text, "Model: "+config.DefaultAPIModel)
	assert.Contains(t, text, "Model switched to command-r")
	assert.Contains(t, text, "user: what time is it?")
	assert.Contains(t, text, "utc_offset")
	assert.Contains(t, text, "Unknown command: /bogus")
	assert.Contains(t, text, "History cleared.")
	assert.Contains(t, text, "No history yet.")
	assert.NotContains(t, text, "never read")
	assert.Equal(t, "command-r", s.cfg.API.Model)
	assert.Empty(t, s.history)
}

func TestREPL_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	s := offlineSession(t, &out)

	require.NoError(t, newREPL(s, strings.NewReader("hello"), &out).run(context.Background()))
	assert.Contains(t, out.String(), "I am running offline")
	require.Len(t, s.history, 2)
}

func TestFindTool(t *testing.T) {
	defs, err := enabledTools(testConfig(t, "get_current_time", "get_weather"))
	require.NoError(t, err)

	def := findTool(defs, "GET_WEATHER")
	require.NotNil(t, def)
	assert.Equal(t, "get_weather", def.Name)
	assert.Nil(t, findTool(defs, "find_employees"))
}
