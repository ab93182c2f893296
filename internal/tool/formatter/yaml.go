package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/kaiwa/internal/tool"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatTools(defs []tool.Definition) (string, error) {
	data, err := yaml.Marshal(toolViews(defs))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatTool(def *tool.Definition) (string, error) {
	if def == nil {
		return "null", nil
	}
	data, err := yaml.Marshal(newToolView(*def))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
