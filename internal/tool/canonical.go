package tool

import (
	"bytes"
	"encoding/json"
	"strings"
)

const emptyArguments = "{}"

// CanonicalArguments turns whatever the model sent as tool arguments into a
// string that is guaranteed to be valid JSON:
//
//	nil, "", whitespace    -> {}
//	valid JSON text        -> unchanged (trimmed)
//	any other string       -> JSON string literal
//	json.RawMessage        -> compacted, or {} when empty/invalid
//	other values           -> json.Marshal
func CanonicalArguments(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return emptyArguments
	case string:
		return canonicalText(val)
	case json.RawMessage:
		return canonicalRaw(val)
	case []byte:
		return canonicalText(string(val))
	default:
		out, err := json.Marshal(val)
		if err != nil || len(out) == 0 {
			return emptyArguments
		}
		return canonicalRaw(out)
	}
}

func canonicalText(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return emptyArguments
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	quoted, err := json.Marshal(trimmed)
	if err != nil {
		return emptyArguments
	}
	return string(quoted)
}

func canonicalRaw(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyArguments
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return emptyArguments
	}
	return buf.String()
}

// ParseArguments decodes canonical arguments into the object handed to a
// handler. Non-object values are wrapped under "input".
func ParseArguments(canonical string) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(canonical), &v); err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return val, nil
	case nil:
		return map[string]interface{}{}, nil
	default:
		return map[string]interface{}{"input": val}, nil
	}
}

// CacheKey identifies a tool invocation for result reuse.
func CacheKey(name, canonicalArgs string) string {
	return NormalizeToolName(name) + ":" + canonicalArgs
}
