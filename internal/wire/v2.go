package wire

import (
	"encoding/json"

	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/stream"
	"github.com/harunnryd/kaiwa/internal/tool"

	"github.com/sashabaranov/go-openai"
)

type v2Request struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Stream      bool                           `json:"stream"`
	Tools       []openai.Tool                  `json:"tools,omitempty"`
	Documents   []map[string]interface{}       `json:"documents,omitempty"`
	Temperature *float32                       `json:"temperature,omitempty"`
}

// V2Builder produces messages-style bodies. Messages and tools use the
// OpenAI-compatible shapes the v2 chat endpoint accepts.
type V2Builder struct {
	opts Options
}

func (b *V2Builder) Flavor() string { return stream.FlavorV2 }

func (b *V2Builder) Initial(history []contract.Turn, tools []contract.ToolSpec) ([]byte, error) {
	return b.body(history, tools)
}

func (b *V2Builder) Continuation(history []contract.Turn, echo []contract.ToolCall, results []contract.ToolResult, tools []contract.ToolSpec) ([]byte, error) {
	return b.body(Extend(history, echo, results), tools)
}

func (b *V2Builder) body(history []contract.Turn, tools []contract.ToolSpec) ([]byte, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if b.opts.Preamble != "" && (len(history) == 0 || history[0].Role != contract.RoleSystem) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: b.opts.Preamble,
		})
	}
	for _, turn := range history {
		messages = append(messages, v2Message(turn))
	}

	return json.Marshal(v2Request{
		Model:       b.opts.Model,
		Messages:    messages,
		Stream:      true,
		Tools:       v2Tools(tools),
		Documents:   b.opts.Documents,
		Temperature: b.opts.Temperature,
	})
}

func v2Message(turn contract.Turn) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(turn.Role),
		Content:    turn.Content,
		ToolCallID: turn.ToolCallID,
	}
	for _, call := range turn.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: tool.CanonicalArguments(call.Arguments),
			},
		})
	}
	return msg
}

func v2Tools(specs []contract.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}

	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		params := spec.Parameters
		if len(params) == 0 {
			params = DefaultParameters()
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
