package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	toolcore "github.com/harunnryd/kaiwa/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("get_current_time", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &TimeTool{}, nil
	})
}

// TimeTool reports the current time, optionally shifted to a UTC offset.
type TimeTool struct {
	Now func() time.Time
}

func (t *TimeTool) Name() string { return "get_current_time" }

func (t *TimeTool) Description() string {
	return "Get the current date and time, optionally at a UTC offset such as +02:00."
}

func (t *TimeTool) ToolMetadata() toolcore.ToolMetadata {
	return toolcore.ToolMetadata{
		Source:       "builtin",
		Capabilities: []string{"time.query"},
		Risk:         toolcore.RiskLow,
	}
}

func (t *TimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"utc_offset": map[string]interface{}{
				"type":        "string",
				"description": "UTC offset like +07:00 (optional)",
			},
		},
	}
}

func (t *TimeTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		UTCOffset string `json:"utc_offset"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}

	offset := strings.TrimSpace(args.UTCOffset)
	if offset == "" {
		offset = "+00:00"
	}
	seconds, err := parseUTCOffset(offset)
	if err != nil {
		return nil, err
	}

	local := now().In(time.FixedZone(offset, seconds))
	return json.Marshal(map[string]string{
		"time":       local.Format(time.RFC3339),
		"weekday":    local.Weekday().String(),
		"utc_offset": offset,
	})
}

// parseUTCOffset accepts ±HH:MM and returns the offset in seconds.
func parseUTCOffset(offset string) (int, error) {
	invalid := fmt.Errorf("invalid utc_offset %q", offset)
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return 0, invalid
	}
	for _, i := range []int{1, 2, 4, 5} {
		if offset[i] < '0' || offset[i] > '9' {
			return 0, invalid
		}
	}

	hours := int(offset[1]-'0')*10 + int(offset[2]-'0')
	minutes := int(offset[4]-'0')*10 + int(offset[5]-'0')
	if hours > 23 || minutes > 59 {
		return 0, invalid
	}

	seconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return seconds, nil
}
