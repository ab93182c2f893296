package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	toolcore "github.com/harunnryd/kaiwa/internal/tool"
)

const (
	defaultWeatherBaseURL  = "https://wttr.in"
	defaultForecastDays    = 3
	maxForecastDays        = 14
	maxWeatherResponseSize = 2 << 20
)

type weatherArgs struct {
	City     string `json:"city"`
	Location string `json:"location"`
	Start    string `json:"start"`
	Days     int    `json:"days"`
}

func (a weatherArgs) place() string {
	if city := strings.TrimSpace(a.City); city != "" {
		return city
	}
	return strings.TrimSpace(a.Location)
}

type wttrValue struct {
	Value string `json:"value"`
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC         string      `json:"temp_C"`
		FeelsLikeC    string      `json:"FeelsLikeC"`
		WeatherDesc   []wttrValue `json:"weatherDesc"`
		Humidity      string      `json:"humidity"`
		WindspeedKmph string      `json:"windspeedKmph"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrValue `json:"areaName"`
		Region   []wttrValue `json:"region"`
		Country  []wttrValue `json:"country"`
	} `json:"nearest_area"`
	Weather []wttrDay `json:"weather"`
}

type wttrDay struct {
	Date     string `json:"date"`
	MaxTempC string `json:"maxtempC"`
	MinTempC string `json:"mintempC"`
	Hourly   []struct {
		WeatherDesc []wttrValue `json:"weatherDesc"`
	} `json:"hourly"`
}

func init() {
	toolcore.RegisterBuiltin("get_weather", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		client := options.HTTPClient
		if client == nil {
			timeout := options.WeatherTimeout
			if timeout <= 0 {
				timeout = toolcore.DefaultBuiltinWebTimeout
			}
			client = &http.Client{Timeout: timeout}
		}

		baseURL := strings.TrimSpace(options.WeatherBaseURL)
		if baseURL == "" {
			baseURL = defaultWeatherBaseURL
		}

		return &WeatherTool{Client: client, BaseURL: baseURL}, nil
	})
}

// WeatherTool fetches current conditions and a short forecast from wttr.in.
type WeatherTool struct {
	Client  *http.Client
	BaseURL string
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "Get the current weather and a short forecast for a city."
}

func (t *WeatherTool) ToolMetadata() toolcore.ToolMetadata {
	return toolcore.ToolMetadata{
		Source:       "builtin",
		Capabilities: []string{"weather.query", "http.get"},
		Risk:         toolcore.RiskLow,
	}
}

func (t *WeatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"city": map[string]interface{}{
				"type":        "string",
				"description": "City name, for example Rome or San Francisco, CA",
			},
			"start": map[string]interface{}{
				"type":        "string",
				"description": "Optional first forecast day in YYYY-MM-DD format",
			},
			"days": map[string]interface{}{
				"type":        "integer",
				"description": "Optional number of forecast days (default 3)",
			},
		},
		"required": []string{"city"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args weatherArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	place := args.place()
	if place == "" {
		return nil, fmt.Errorf("city is required")
	}

	payload, err := t.fetch(ctx, place)
	if err != nil {
		return nil, err
	}
	if len(payload.CurrentCondition) == 0 {
		return nil, fmt.Errorf("weather response missing current condition")
	}

	days, err := forecastWindow(payload.Weather, args.Start, args.Days)
	if err != nil {
		return nil, err
	}

	forecast := make([]map[string]string, 0, len(days))
	for _, day := range days {
		condition := ""
		if len(day.Hourly) > 0 {
			condition = firstValue(day.Hourly[0].WeatherDesc)
		}
		forecast = append(forecast, map[string]string{
			"date":       strings.TrimSpace(day.Date),
			"min_temp_c": strings.TrimSpace(day.MinTempC),
			"max_temp_c": strings.TrimSpace(day.MaxTempC),
			"condition":  condition,
		})
	}

	current := payload.CurrentCondition[0]
	return json.Marshal(map[string]interface{}{
		"city":     place,
		"location": resolvedLocation(payload, place),
		"current": map[string]string{
			"temperature_c": strings.TrimSpace(current.TempC),
			"feels_like_c":  strings.TrimSpace(current.FeelsLikeC),
			"condition":     firstValue(current.WeatherDesc),
			"humidity_pct":  strings.TrimSpace(current.Humidity),
			"wind_kmph":     strings.TrimSpace(current.WindspeedKmph),
		},
		"forecast": forecast,
	})
}

func (t *WeatherTool) fetch(ctx context.Context, place string) (*wttrResponse, error) {
	endpoint, err := weatherEndpoint(t.BaseURL, place)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "kaiwa/1.0")

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: toolcore.DefaultBuiltinWebTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("weather request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherResponseSize))
	if err != nil {
		return nil, err
	}

	var payload wttrResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	return &payload, nil
}

func weatherEndpoint(baseURL string, place string) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultWeatherBaseURL
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid weather endpoint %q", base)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/" + url.PathEscape(place)
	q := parsed.Query()
	q.Set("format", "j1")
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

func forecastWindow(days []wttrDay, start string, count int) ([]wttrDay, error) {
	if count <= 0 {
		count = defaultForecastDays
	}
	if count > maxForecastDays {
		count = maxForecastDays
	}

	from := 0
	if start = strings.TrimSpace(start); start != "" {
		startDate, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return nil, fmt.Errorf("start must use YYYY-MM-DD format")
		}
		from = len(days)
		for i, day := range days {
			date, err := time.Parse(time.DateOnly, strings.TrimSpace(day.Date))
			if err == nil && !date.Before(startDate) {
				from = i
				break
			}
		}
	}

	to := min(from+count, len(days))
	return days[from:to], nil
}

func resolvedLocation(payload *wttrResponse, fallback string) string {
	if len(payload.NearestArea) == 0 {
		return fallback
	}

	area := payload.NearestArea[0]
	parts := make([]string, 0, 3)
	for _, part := range []string{firstValue(area.AreaName), firstValue(area.Region), firstValue(area.Country)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func firstValue(values []wttrValue) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
