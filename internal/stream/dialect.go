package stream

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/kaiwa/internal/model/contract"

	"github.com/tidwall/gjson"
)

const (
	FlavorV2 = "v2"
	FlavorV1 = "v1"
)

// Dialect maps one wire generation's payloads to events.
type Dialect interface {
	Name() string
	// Discriminator is the payload field holding the event kind.
	Discriminator() string
	decode(kind string, payload gjson.Result, acc *accumulator) []Event
}

func DialectFor(flavor string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(flavor)) {
	case "", FlavorV2:
		return CurrentDialect{}, nil
	case FlavorV1:
		return LegacyDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown stream flavor %q", flavor)
	}
}

// accumulator collects tool calls keyed by the server-assigned index.
type accumulator struct {
	calls map[int]*contract.ToolCall
	newID func() string
}

func newAccumulator(newID func() string) *accumulator {
	return &accumulator{
		calls: make(map[int]*contract.ToolCall),
		newID: newID,
	}
}

func (a *accumulator) start(index int, id, name, args string) ToolCallStarted {
	if strings.TrimSpace(id) == "" {
		id = a.newID()
	}
	a.calls[index] = &contract.ToolCall{
		Index:     index,
		ID:        id,
		Name:      name,
		Arguments: args,
	}
	return ToolCallStarted{Index: index, ID: id, Name: name, Arguments: args}
}

func (a *accumulator) appendArgs(index int, fragment string) (ToolCallArgsDelta, bool) {
	call, ok := a.calls[index]
	if !ok {
		return ToolCallArgsDelta{}, false
	}
	call.Arguments += fragment
	return ToolCallArgsDelta{Index: index, Fragment: fragment}, true
}

func (a *accumulator) reset() {
	clear(a.calls)
}

func (a *accumulator) snapshot() []contract.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	out := make([]contract.ToolCall, 0, len(a.calls))
	for _, call := range a.calls {
		out = append(out, *call)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// rawText returns a string field as-is and any other JSON value as its raw
// text, so non-string arguments survive until canonicalization.
func rawText(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return r.String()
	default:
		return r.Raw
	}
}
