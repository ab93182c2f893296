package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/stream"
	"github.com/harunnryd/kaiwa/internal/tool"
)

const (
	v1RoleUser    = "USER"
	v1RoleChatbot = "CHATBOT"
	v1RoleSystem  = "SYSTEM"
	v1RoleTool    = "TOOL"
)

type v1Request struct {
	Model           string                   `json:"model,omitempty"`
	Message         string                   `json:"message"`
	Preamble        string                   `json:"preamble,omitempty"`
	ChatHistory     []v1Turn                 `json:"chat_history,omitempty"`
	Tools           []v1Tool                 `json:"tools,omitempty"`
	ToolResults     []v1ToolResult           `json:"tool_results,omitempty"`
	Documents       []map[string]interface{} `json:"documents,omitempty"`
	Temperature     *float32                 `json:"temperature,omitempty"`
	ForceSingleStep bool                     `json:"force_single_step"`
	Stream          bool                     `json:"stream"`
}

type v1Turn struct {
	Role        string         `json:"role"`
	Message     string         `json:"message,omitempty"`
	ToolCalls   []v1Call       `json:"tool_calls,omitempty"`
	ToolResults []v1ToolResult `json:"tool_results,omitempty"`
}

type v1Call struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type v1ToolResult struct {
	Call    v1Call            `json:"call"`
	Outputs []json.RawMessage `json:"outputs"`
}

type v1Tool struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	ParameterDefinitions map[string]v1Param `json:"parameter_definitions,omitempty"`
}

type v1Param struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
}

// V1Builder produces single-message bodies: the latest user turn is the
// message, earlier turns become chat_history and tool outputs travel in
// tool_results.
type V1Builder struct {
	opts Options
}

func (b *V1Builder) Flavor() string { return stream.FlavorV1 }

func (b *V1Builder) Initial(history []contract.Turn, tools []contract.ToolSpec) ([]byte, error) {
	return b.body(history, tools)
}

func (b *V1Builder) Continuation(history []contract.Turn, echo []contract.ToolCall, results []contract.ToolResult, tools []contract.ToolSpec) ([]byte, error) {
	return b.body(Extend(history, echo, results), tools)
}

func (b *V1Builder) body(history []contract.Turn, tools []contract.ToolSpec) ([]byte, error) {
	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == contract.RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, fmt.Errorf("history has no user turn")
	}

	// tool rounds after the latest user turn are replayed as tool_results
	calls := callsByID(history)
	var results []v1ToolResult
	for _, turn := range history[last+1:] {
		if turn.Role == contract.RoleTool {
			results = append(results, v1Result(calls[turn.ToolCallID], turn.Content))
		}
	}

	return json.Marshal(v1Request{
		Model:           b.opts.Model,
		Message:         history[last].Content,
		Preamble:        b.opts.Preamble,
		ChatHistory:     v1History(history[:last], calls),
		Tools:           v1Tools(tools),
		ToolResults:     results,
		Documents:       b.opts.Documents,
		Temperature:     b.opts.Temperature,
		ForceSingleStep: true,
		Stream:          true,
	})
}

func callsByID(history []contract.Turn) map[string]contract.ToolCall {
	calls := make(map[string]contract.ToolCall)
	for _, turn := range history {
		for _, call := range turn.ToolCalls {
			calls[call.ID] = call
		}
	}
	return calls
}

func v1History(turns []contract.Turn, calls map[string]contract.ToolCall) []v1Turn {
	var out []v1Turn
	for _, turn := range turns {
		switch turn.Role {
		case contract.RoleUser:
			out = append(out, v1Turn{Role: v1RoleUser, Message: turn.Content})
		case contract.RoleSystem:
			out = append(out, v1Turn{Role: v1RoleSystem, Message: turn.Content})
		case contract.RoleAssistant:
			t := v1Turn{Role: v1RoleChatbot, Message: turn.Content}
			for _, call := range turn.ToolCalls {
				t.ToolCalls = append(t.ToolCalls, v1CallOf(call))
			}
			out = append(out, t)
		case contract.RoleTool:
			out = append(out, v1Turn{
				Role:        v1RoleTool,
				ToolResults: []v1ToolResult{v1Result(calls[turn.ToolCallID], turn.Content)},
			})
		}
	}
	return out
}

func v1CallOf(call contract.ToolCall) v1Call {
	return v1Call{
		Name:       call.Name,
		Parameters: json.RawMessage(tool.CanonicalArguments(call.Arguments)),
	}
}

func v1Result(call contract.ToolCall, content string) v1ToolResult {
	return v1ToolResult{Call: v1CallOf(call), Outputs: v1Outputs(content)}
}

// v1Outputs spreads a result document into a list of objects. Arrays are
// split into elements and scalars are wrapped under "result".
func v1Outputs(content string) []json.RawMessage {
	var v interface{}
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		v = content
	}

	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}

	outputs := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if _, isObject := item.(map[string]interface{}); !isObject {
			item = map[string]interface{}{"result": item}
		}
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		outputs = append(outputs, raw)
	}
	return outputs
}

func v1Tools(specs []contract.ToolSpec) []v1Tool {
	if len(specs) == 0 {
		return nil
	}

	tools := make([]v1Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, v1Tool{
			Name:                 spec.Name,
			Description:          spec.Description,
			ParameterDefinitions: v1Params(spec.Parameters),
		})
	}
	return tools
}

// v1Params flattens a JSON schema object into parameter_definitions.
func v1Params(schema map[string]interface{}) map[string]v1Param {
	props, _ := schema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return nil
	}

	required := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []interface{}:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	out := make(map[string]v1Param, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]interface{})
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		out[name] = v1Param{
			Description: desc,
			Type:        v1Type(typ),
			Required:    required[name],
		}
	}
	return out
}

func v1Type(jsonType string) string {
	switch strings.ToLower(jsonType) {
	case "string", "str":
		return "str"
	case "integer", "int":
		return "int"
	case "number", "float":
		return "float"
	case "boolean", "bool":
		return "bool"
	case "array":
		return "List"
	case "object":
		return "Dict"
	case "":
		return "str"
	default:
		return jsonType
	}
}
