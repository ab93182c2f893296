package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	kaiwaErrors "github.com/harunnryd/kaiwa/internal/errors"
	"github.com/harunnryd/kaiwa/internal/model/contract"
)

var (
	ErrToolNotFound  = fmt.Errorf("tool %w", kaiwaErrors.ErrNotFound)
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Handler executes one tool call. args is always a JSON object.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition is a caller-owned tool: its wire schema plus the local handler.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Handler     Handler
	Metadata    ToolMetadata
	// Validate checks arguments against Parameters before the handler runs.
	// Off by default: handlers receive whatever the model sent.
	Validate bool
}

func (d Definition) Spec() contract.ToolSpec {
	return contract.ToolSpec{
		Name:        NormalizeToolName(d.Name),
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// Tool is an executable capability that speaks raw JSON. Built-in tools
// implement it and are turned into definitions with FromTool.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

func FromTool(t Tool) Definition {
	def := Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
		Validate:    true,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			input, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("encode arguments: %w", err)
			}
			out, err := t.Execute(ctx, input)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(out), nil
		},
	}
	if provider, ok := t.(MetadataProvider); ok {
		def.Metadata = normalizeToolMetadata(provider.ToolMetadata())
	} else {
		def.Metadata = normalizeToolMetadata(ToolMetadata{})
	}
	return def
}

// Registry is the per-request lookup table of tool definitions.
type Registry struct {
	tools map[string]Definition
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{tools: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(def Definition) error {
	name := NormalizeToolName(def.Name)
	if name == "" {
		return fmt.Errorf("tool: empty tool name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	def.Name = name
	r.tools[name] = def
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.tools[NormalizeToolName(name)]
	return def, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all definitions ordered by name.
func (r *Registry) Definitions() []Definition {
	names := r.Names()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name])
	}
	return defs
}

func (r *Registry) Specs() []contract.ToolSpec {
	defs := r.Definitions()
	specs := make([]contract.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, def.Spec())
	}
	return specs
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
