package stream

import (
	"github.com/tidwall/gjson"
)

// Event kinds of the legacy ("event_type"-keyed) wire generation.
const (
	KindToolCallsGeneration = "tool-calls-generation"
)

// LegacyDialect decodes the v1 chat stream, where tool calls arrive whole in
// a single tool-calls-generation event and stream-end closes the turn.
type LegacyDialect struct{}

func (LegacyDialect) Name() string          { return FlavorV1 }
func (LegacyDialect) Discriminator() string { return "event_type" }

func (LegacyDialect) decode(kind string, payload gjson.Result, acc *accumulator) []Event {
	switch kind {
	case KindTextGeneration:
		text := payload.Get("text").String()
		if text == "" {
			return nil
		}
		return []Event{TextDelta{Text: text}}

	case KindToolCallsGeneration:
		// each event replaces the previous set
		acc.reset()
		var events []Event
		for i, tc := range payload.Get("tool_calls").Array() {
			events = append(events, acc.start(i, "", tc.Get("name").String(), rawText(tc.Get("parameters"))))
		}
		return events

	case KindStreamEnd:
		return []Event{StreamEnded{ToolCalls: acc.snapshot()}}

	default:
		// stream-start, search-queries-generation, citation-generation,
		// tool-calls-chunk and unknown kinds.
		return nil
	}
}
