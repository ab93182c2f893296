package stream

import (
	"encoding/json"

	"github.com/harunnryd/kaiwa/internal/model/contract"
)

// Event is one decoded stream event. The concrete types are TextDelta,
// ToolCallStarted, ToolCallArgsDelta and StreamEnded.
type Event interface {
	isEvent()
}

type TextDelta struct {
	Text string
}

type ToolCallStarted struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type ToolCallArgsDelta struct {
	Index    int
	Fragment string
}

// StreamEnded is always the last event of a stream. ToolCalls are the calls
// accumulated while decoding, ordered by index. Echo holds the tool calls of
// the final assistant message when the server sent one.
type StreamEnded struct {
	ToolCalls []contract.ToolCall
	Echo      []contract.ToolCall
	Message   json.RawMessage
}

func (TextDelta) isEvent()         {}
func (ToolCallStarted) isEvent()   {}
func (ToolCallArgsDelta) isEvent() {}
func (StreamEnded) isEvent()       {}

// EchoCalls returns the tool calls to repeat back to the model: the final
// message's calls when present, otherwise the accumulated ones.
func (e StreamEnded) EchoCalls() []contract.ToolCall {
	if len(e.Echo) > 0 {
		return e.Echo
	}
	return e.ToolCalls
}
