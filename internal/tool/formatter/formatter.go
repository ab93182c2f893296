package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/kaiwa/internal/tool"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

type ToolFormatter interface {
	FormatTools([]tool.Definition) (string, error)
	FormatTool(*tool.Definition) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (ToolFormatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

// toolView is the serialisable summary of a definition.
type toolView struct {
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description" yaml:"description"`
	Source       string      `json:"source" yaml:"source"`
	Risk         string      `json:"risk" yaml:"risk"`
	Capabilities []string    `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Parameters   []paramView `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type paramView struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required" yaml:"required"`
}

func newToolView(def tool.Definition) toolView {
	return toolView{
		Name:         tool.NormalizeToolName(def.Name),
		Description:  def.Description,
		Source:       def.Metadata.Source,
		Risk:         string(def.Metadata.Risk),
		Capabilities: def.Metadata.Capabilities,
		Parameters:   paramViews(def.Parameters),
	}
}

// paramViews lists schema properties sorted by name.
func paramViews(schema map[string]interface{}) []paramView {
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

	out := make([]paramView, 0, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]interface{})
		typ, _ := prop["type"].(string)
		out = append(out, paramView{Name: name, Type: typ, Required: required[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toolViews(defs []tool.Definition) []toolView {
	views := make([]toolView, 0, len(defs))
	for _, def := range defs {
		views = append(views, newToolView(def))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}
