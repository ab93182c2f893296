package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalArguments(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, `{}`},
		{"empty string", "", `{}`},
		{"whitespace", "  \n", `{}`},
		{"object value", map[string]interface{}{"a": 1}, `{"a":1}`},
		{"json string passthrough", `{"a":1}`, `{"a":1}`},
		{"json string keeps spacing", `{"a": 1}`, `{"a": 1}`},
		{"json string trimmed", " {\"city\":\"Rome\"}\n", `{"city":"Rome"}`},
		{"not json", "not json", `"not json"`},
		{"truncated json", `{"x":1`, `"{\"x\":1"`},
		{"number", 42, `42`},
		{"raw message", json.RawMessage(` {"b": [1, 2]} `), `{"b":[1,2]}`},
		{"raw null", json.RawMessage(`null`), `{}`},
		{"invalid raw", json.RawMessage(`{oops`), `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalArguments(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)))
		})
	}
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"employee_id":"E-1001"}`)
	require.NoError(t, err)
	assert.Equal(t, "E-1001", args["employee_id"])

	args, err = ParseArguments(`"not json"`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"input": "not json"}, args)

	args, err = ParseArguments(`null`)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "get_weather:{}", CacheKey(" get_weather ", "{}"))
}
