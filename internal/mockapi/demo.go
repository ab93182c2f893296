package mockapi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	cityPattern     = regexp.MustCompile(`\b(?:[Ii]n|[Ff]or|[Aa]t)\s+([A-Z][\p{L}\-]+(?:\s+[A-Z][\p{L}\-]+)?)`)
	employeePattern = regexp.MustCompile(`(?i)\bemp-\d{3}\b`)
)

// Demo answers like a tool-using assistant without any model behind it.
// It inspects the last message of a v2 request: a user turn may trigger a
// tool call, and tool results are summarised into a final answer.
func Demo() Responder {
	return ResponderFunc(func(n int, body []byte) Response {
		messages := gjson.GetBytes(body, "messages").Array()
		if len(messages) == 0 {
			return Response{Status: 400, Body: `{"message":"messages must not be empty"}`}
		}

		last := messages[len(messages)-1]
		if last.Get("role").String() == "tool" {
			return Response{Lines: Answer(Words(summarise(messages))...)}
		}

		text := last.Get("content").String()
		if call, ok := demoCall(n, text, toolNames(body)); ok {
			return Response{Lines: ToolCalls("Let me look that up. ", call)}
		}
		return Response{Lines: Answer(Words(fmt.Sprintf("You said: %q. I am running offline; ask me about the weather, the time or an employee.", text))...)}
	})
}

func toolNames(body []byte) map[string]bool {
	names := make(map[string]bool)
	for _, t := range gjson.GetBytes(body, "tools.#.function.name").Array() {
		names[t.String()] = true
	}
	return names
}

func demoCall(n int, text string, tools map[string]bool) (Call, bool) {
	id := fmt.Sprintf("call_demo_%d", n)
	lower := strings.ToLower(text)

	switch {
	case tools["get_employee_detailed_data"] && employeePattern.MatchString(text):
		return Call{ID: id, Name: "get_employee_detailed_data", Arguments: jsonArgs(map[string]interface{}{
			"employee_id": strings.ToLower(employeePattern.FindString(text)),
		})}, true

	case tools["get_weather"] && strings.Contains(lower, "weather"):
		city := "Tel Aviv"
		if m := cityPattern.FindStringSubmatch(text); m != nil {
			city = m[1]
		}
		return Call{ID: id, Name: "get_weather", Arguments: jsonArgs(map[string]interface{}{"city": city})}, true

	case tools["get_current_time"] && strings.Contains(lower, "time"):
		return Call{ID: id, Name: "get_current_time", Arguments: "{}"}, true

	case tools["find_employees"] && (strings.Contains(lower, "employee") || strings.Contains(lower, "who")):
		query := ""
		for _, word := range strings.Fields(text) {
			if w := strings.Trim(word, "?.,!"); len(w) > 2 && w[0] >= 'A' && w[0] <= 'Z' {
				query = w
			}
		}
		return Call{ID: id, Name: "find_employees", Arguments: jsonArgs(map[string]interface{}{"query": query})}, true
	}
	return Call{}, false
}

func jsonArgs(v map[string]interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// summarise renders the tool turns that follow the last assistant tool call.
func summarise(messages []gjson.Result) string {
	var parts []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Get("role").String() != "tool" {
			break
		}
		content := gjson.Parse(msg.Get("content").String())
		if errText := content.Get("error"); errText.Exists() {
			parts = append(parts, "the tool reported an error: "+errText.String())
			continue
		}
		parts = append(parts, "here is what I found: "+compact(content.Raw))
	}
	if len(parts) == 0 {
		return "I have nothing to report."
	}
	// restore call order
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.ToUpper(parts[0][:1]) + parts[0][1:] + joinRest(parts[1:])
}

func joinRest(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return "; " + strings.Join(parts, "; ")
}

func compact(raw string) string {
	const limit = 400
	raw = strings.TrimSpace(raw)
	if len(raw) > limit {
		return raw[:limit] + "..."
	}
	return raw
}
