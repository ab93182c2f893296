package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	toolcore "github.com/harunnryd/kaiwa/internal/tool"
)

// Employee is a directory entry served by the HR demo tools.
type Employee struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Name       string  `json:"name"`
	Nickname   string  `json:"nickname"`
	Email      string  `json:"email"`
	Division   string  `json:"division"`
	Department string  `json:"department"`
	Branch     string  `json:"branch"`
	Role       string  `json:"role"`
	Manager    string  `json:"manager"`
	StartDate  string  `json:"start_date"`
	Rating     float64 `json:"performance_rating"`
	TimeOff    TimeOff `json:"time_off"`
	Salary     Salary  `json:"salary"`
}

type TimeOff struct {
	VacationBalance  int `json:"vacation_balance"`
	VacationUsed     int `json:"vacation_used"`
	SickLeaveBalance int `json:"sick_leave_balance"`
	SickLeaveUsed    int `json:"sick_leave_used"`
	PersonalDays     int `json:"personal_days"`
}

type Salary struct {
	Period string `json:"period"`
	Gross  int    `json:"gross"`
	Net    int    `json:"net"`
	Bonus  int    `json:"bonus"`
}

// DefaultEmployees is the in-memory directory used when no other source is
// configured.
var DefaultEmployees = []Employee{
	{
		ID: "emp-001", Number: "10001", Name: "David Levi", Nickname: "Dudu",
		Email: "dudu@company.example", Division: "Technology", Department: "Development",
		Branch: "Central", Role: "Senior Developer", Manager: "Rachel Abraham",
		StartDate: "2020-03-01", Rating: 4.5,
		TimeOff: TimeOff{VacationBalance: 15, VacationUsed: 5, SickLeaveBalance: 8, SickLeaveUsed: 2, PersonalDays: 3},
		Salary:  Salary{Period: "2024-12", Gross: 25000, Net: 18500, Bonus: 5000},
	},
	{
		ID: "emp-002", Number: "10002", Name: "Rachel Abraham", Nickname: "Rachelle",
		Email: "rachelle@company.example", Division: "Marketing", Department: "Digital Marketing",
		Branch: "Central", Role: "Marketing Manager", Manager: "Yossi Mizrahi",
		StartDate: "2018-06-15", Rating: 4.8,
		TimeOff: TimeOff{VacationBalance: 21, VacationUsed: 9, SickLeaveBalance: 10, SickLeaveUsed: 1, PersonalDays: 2},
		Salary:  Salary{Period: "2024-12", Gross: 31000, Net: 22400, Bonus: 7000},
	},
	{
		ID: "emp-003", Number: "10003", Name: "Yossi Mizrahi", Nickname: "Yossi",
		Email: "yossi@company.example", Division: "Operations", Department: "Logistics",
		Branch: "North", Role: "Operations Director", Manager: "",
		StartDate: "2015-01-04", Rating: 4.2,
		TimeOff: TimeOff{VacationBalance: 8, VacationUsed: 17, SickLeaveBalance: 12, SickLeaveUsed: 0, PersonalDays: 1},
		Salary:  Salary{Period: "2024-12", Gross: 38000, Net: 26900, Bonus: 9000},
	},
	{
		ID: "emp-004", Number: "10004", Name: "David Cohen", Nickname: "Dave",
		Email: "dave@company.example", Division: "Technology", Department: "QA",
		Branch: "South", Role: "QA Engineer", Manager: "David Levi",
		StartDate: "2022-09-12", Rating: 3.9,
		TimeOff: TimeOff{VacationBalance: 11, VacationUsed: 3, SickLeaveBalance: 6, SickLeaveUsed: 4, PersonalDays: 2},
		Salary:  Salary{Period: "2024-12", Gross: 19000, Net: 14300, Bonus: 1500},
	},
}

func init() {
	toolcore.RegisterBuiltin("get_employee_detailed_data", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &EmployeeDetailTool{Directory: DefaultEmployees}, nil
	})
	toolcore.RegisterBuiltin("find_employees", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &EmployeeSearchTool{Directory: DefaultEmployees}, nil
	})
}

// EmployeeDetailTool returns salary, time-off and performance data for one
// employee.
type EmployeeDetailTool struct {
	Directory []Employee
}

func (t *EmployeeDetailTool) Name() string { return "get_employee_detailed_data" }

func (t *EmployeeDetailTool) Description() string {
	return "Fetch detailed HR data (salary, time off, performance) for a specific employee by id or employee number."
}

func (t *EmployeeDetailTool) ToolMetadata() toolcore.ToolMetadata {
	return toolcore.ToolMetadata{
		Source:       "builtin",
		Capabilities: []string{"hr.read"},
		Risk:         toolcore.RiskMedium,
	}
}

func (t *EmployeeDetailTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"employee_id": map[string]interface{}{
				"type":        "string",
				"description": "Employee id (emp-001) or employee number (10001)",
			},
		},
		"required": []string{"employee_id"},
	}
}

func (t *EmployeeDetailTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		EmployeeID string `json:"employee_id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	id := strings.TrimSpace(args.EmployeeID)
	if id == "" {
		return nil, fmt.Errorf("employee_id is required")
	}

	for _, e := range t.Directory {
		if strings.EqualFold(e.ID, id) || e.Number == id {
			return json.Marshal(e)
		}
	}
	return nil, fmt.Errorf("employee %s not found", id)
}

// EmployeeSearchTool matches employees by name, nickname or number. It only
// exposes directory fields, never salary data.
type EmployeeSearchTool struct {
	Directory []Employee
}

func (t *EmployeeSearchTool) Name() string { return "find_employees" }

func (t *EmployeeSearchTool) Description() string {
	return "Search the employee directory by name, nickname or employee number. Returns every match so ambiguous names can be clarified."
}

func (t *EmployeeSearchTool) ToolMetadata() toolcore.ToolMetadata {
	return toolcore.ToolMetadata{
		Source:       "builtin",
		Capabilities: []string{"hr.directory"},
		Risk:         toolcore.RiskLow,
	}
}

func (t *EmployeeSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Full or partial name, nickname or employee number",
			},
		},
		"required": []string{"query"},
	}
}

type employeeSummary struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	Name       string `json:"name"`
	Nickname   string `json:"nickname"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

func (t *EmployeeSearchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(args.Query))
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	matches := make([]employeeSummary, 0)
	for _, e := range t.Directory {
		if strings.Contains(strings.ToLower(e.Name), query) ||
			strings.Contains(strings.ToLower(e.Nickname), query) ||
			e.Number == query || strings.EqualFold(e.ID, query) {
			matches = append(matches, employeeSummary{
				ID:         e.ID,
				Number:     e.Number,
				Name:       e.Name,
				Nickname:   e.Nickname,
				Department: e.Department,
				Role:       e.Role,
			})
		}
	}

	return json.Marshal(matches)
}
