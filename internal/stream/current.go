package stream

import (
	"encoding/json"

	"github.com/harunnryd/kaiwa/internal/model/contract"

	"github.com/tidwall/gjson"
)

// Event kinds of the current ("type"-keyed) wire generation.
const (
	KindContentDelta   = "content-delta"
	KindTextGeneration = "text-generation"
	KindToolCallStart  = "tool-call-start"
	KindToolCallDelta  = "tool-call-delta"
	KindMessageEnd     = "message-end"
	KindStreamEnd      = "stream-end"
)

// CurrentDialect decodes the v2 chat stream: content deltas, incremental
// tool calls and a message-end carrying the final assistant message.
type CurrentDialect struct{}

func (CurrentDialect) Name() string          { return FlavorV2 }
func (CurrentDialect) Discriminator() string { return "type" }

func (CurrentDialect) decode(kind string, payload gjson.Result, acc *accumulator) []Event {
	switch kind {
	case KindContentDelta, KindTextGeneration:
		text := payload.Get("delta.message.content.text").String()
		if text == "" {
			text = payload.Get("text").String()
		}
		if text == "" {
			return nil
		}
		return []Event{TextDelta{Text: text}}

	case KindToolCallStart:
		tc := toolCallDelta(payload)
		if !tc.Exists() {
			return nil
		}
		started := acc.start(
			int(payload.Get("index").Int()),
			tc.Get("id").String(),
			tc.Get("function.name").String(),
			rawText(tc.Get("function.arguments")),
		)
		return []Event{started}

	case KindToolCallDelta:
		fragment := rawText(toolCallDelta(payload).Get("function.arguments"))
		if fragment == "" {
			return nil
		}
		if delta, ok := acc.appendArgs(int(payload.Get("index").Int()), fragment); ok {
			return []Event{delta}
		}
		return nil

	case KindMessageEnd:
		message := payload.Get("message")
		if !message.Exists() {
			message = payload.Get("delta.message")
		}
		ended := StreamEnded{ToolCalls: acc.snapshot()}
		if message.IsObject() {
			ended.Message = json.RawMessage(message.Raw)
			ended.Echo = messageToolCalls(message)
		}
		return []Event{ended}

	case KindStreamEnd:
		return []Event{StreamEnded{}}

	default:
		// message-start, content-start, content-end, tool-plan-delta,
		// tool-call-end, citation-* and unknown kinds carry nothing we use.
		return nil
	}
}

func toolCallDelta(payload gjson.Result) gjson.Result {
	tc := payload.Get("delta.message.tool_calls")
	if tc.IsArray() {
		return tc.Get("0")
	}
	return tc
}

func messageToolCalls(message gjson.Result) []contract.ToolCall {
	list := message.Get("tool_calls")
	if !list.IsArray() {
		return nil
	}

	var calls []contract.ToolCall
	for i, tc := range list.Array() {
		id := tc.Get("id").String()
		if id == "" {
			id = tc.Get("tool_call_id").String()
		}
		name := tc.Get("name").String()
		if name == "" {
			name = tc.Get("function.name").String()
		}
		args := tc.Get("arguments")
		if !args.Exists() {
			args = tc.Get("function.arguments")
		}
		calls = append(calls, contract.ToolCall{
			Index:     i,
			ID:        id,
			Name:      name,
			Arguments: rawText(args),
		})
	}
	return calls
}
