package wire

import (
	"fmt"
	"strings"

	"github.com/harunnryd/kaiwa/internal/model/contract"
	"github.com/harunnryd/kaiwa/internal/stream"
	"github.com/harunnryd/kaiwa/internal/tool"
)

// Options are the static parts of every request body.
type Options struct {
	Model       string
	Preamble    string
	Temperature *float32
	Documents   []map[string]interface{}
}

// Builder assembles request bodies for one wire generation. Bodies depend
// only on the arguments and the builder's Options.
type Builder interface {
	Flavor() string
	Initial(history []contract.Turn, tools []contract.ToolSpec) ([]byte, error)
	Continuation(history []contract.Turn, echo []contract.ToolCall, results []contract.ToolResult, tools []contract.ToolSpec) ([]byte, error)
}

func NewBuilder(flavor string, opts Options) (Builder, error) {
	switch strings.ToLower(strings.TrimSpace(flavor)) {
	case "", stream.FlavorV2:
		return &V2Builder{opts: opts}, nil
	case stream.FlavorV1:
		return &V1Builder{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown wire flavor %q", flavor)
	}
}

// Extend returns history followed by one assistant turn echoing the tool
// calls and one tool turn per result. history is not modified.
func Extend(history []contract.Turn, echo []contract.ToolCall, results []contract.ToolResult) []contract.Turn {
	out := make([]contract.Turn, 0, len(history)+1+len(results))
	out = append(out, history...)

	calls := make([]contract.ToolCall, len(echo))
	for i, call := range echo {
		call.Arguments = tool.CanonicalArguments(call.Arguments)
		calls[i] = call
	}
	out = append(out, contract.Turn{Role: contract.RoleAssistant, ToolCalls: calls})

	for _, result := range results {
		out = append(out, contract.Turn{
			Role:       contract.RoleTool,
			ToolCallID: result.ToolCallID,
			Content:    result.Content,
		})
	}
	return out
}

// DefaultParameters is the schema sent for tools that declare none.
func DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}
