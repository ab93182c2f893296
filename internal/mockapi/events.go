package mockapi

import (
	"encoding/json"
	"unicode/utf8"
)

// Line builders for the v2 ("type"-keyed) stream format.

func line(v map[string]interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func MessageStart(id string) string {
	return line(map[string]interface{}{
		"type":  "message-start",
		"id":    id,
		"delta": map[string]interface{}{"message": map[string]interface{}{"role": "assistant"}},
	})
}

func ContentDelta(text string) string {
	return line(map[string]interface{}{
		"type":  "content-delta",
		"index": 0,
		"delta": map[string]interface{}{
			"message": map[string]interface{}{
				"content": map[string]interface{}{"text": text},
			},
		},
	})
}

func ToolCallStart(index int, id, name, args string) string {
	return line(map[string]interface{}{
		"type":  "tool-call-start",
		"index": index,
		"delta": map[string]interface{}{
			"message": map[string]interface{}{
				"tool_calls": map[string]interface{}{
					"id":   id,
					"type": "function",
					"function": map[string]interface{}{
						"name":      name,
						"arguments": args,
					},
				},
			},
		},
	})
}

func ToolCallDelta(index int, fragment string) string {
	return line(map[string]interface{}{
		"type":  "tool-call-delta",
		"index": index,
		"delta": map[string]interface{}{
			"message": map[string]interface{}{
				"tool_calls": map[string]interface{}{
					"function": map[string]interface{}{"arguments": fragment},
				},
			},
		},
	})
}

func MessageEnd(finishReason string) string {
	return line(map[string]interface{}{
		"type":  "message-end",
		"delta": map[string]interface{}{"finish_reason": finishReason},
	})
}

func StreamEnd() string {
	return line(map[string]interface{}{"type": "stream-end"})
}

// Answer is a complete plain-text stream, one content-delta per chunk.
func Answer(chunks ...string) []string {
	lines := []string{MessageStart("msg_mock")}
	for _, chunk := range chunks {
		lines = append(lines, ContentDelta(chunk))
	}
	return append(lines, MessageEnd("COMPLETE"), StreamEnd())
}

// Call describes one tool invocation in a scripted stream.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// ToolCalls is a stream requesting the given calls. Arguments are split
// into a start fragment and a delta to exercise accumulation.
func ToolCalls(preface string, calls ...Call) []string {
	lines := []string{MessageStart("msg_mock")}
	if preface != "" {
		lines = append(lines, ContentDelta(preface))
	}
	for i, call := range calls {
		head, tail := splitHalf(call.Arguments)
		lines = append(lines, ToolCallStart(i, call.ID, call.Name, head))
		if tail != "" {
			lines = append(lines, ToolCallDelta(i, tail))
		}
	}
	return append(lines, MessageEnd("TOOL_CALL"))
}

func splitHalf(s string) (string, string) {
	mid := len(s) / 2
	for mid > 0 && !utf8.RuneStart(s[mid]) {
		mid--
	}
	return s[:mid], s[mid:]
}

// Words splits text after every space so answers stream word by word.
func Words(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == ' ' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
