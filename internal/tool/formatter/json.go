package formatter

import (
	"encoding/json"

	"github.com/harunnryd/kaiwa/internal/tool"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatTools(defs []tool.Definition) (string, error) {
	data, err := json.MarshalIndent(toolViews(defs), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatTool(def *tool.Definition) (string, error) {
	if def == nil {
		return "null", nil
	}
	data, err := json.MarshalIndent(newToolView(*def), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
