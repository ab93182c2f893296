package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherToolExecute_City(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "j1", r.URL.Query().Get("format"))
		assert.Equal(t, "/Rome", r.URL.Path)
		_, _ = io.WriteString(w, weatherFixtureJSON())
	}))
	defer server.Close()

	tool := &WeatherTool{Client: server.Client(), BaseURL: server.URL}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"Rome"}`))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))

	assert.Equal(t, "Rome", resp["city"])
	assert.Equal(t, "Rome, Lazio, Italy", resp["location"])

	current, ok := resp["current"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "18", current["temperature_c"])
	assert.Equal(t, "Sunny", current["condition"])

	forecast, ok := resp["forecast"].([]interface{})
	require.True(t, ok)
	assert.Len(t, forecast, 3)
}

func TestWeatherToolExecute_StartAndDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, weatherFixtureJSON())
	}))
	defer server.Close()

	tool := &WeatherTool{Client: server.Client(), BaseURL: server.URL}

	raw, err := tool.Execute(context.Background(), json.RawMessage(`{"location":"Rome","start":"2026-10-19","days":1}`))
	require.NoError(t, err)

	var resp struct {
		Forecast []map[string]string `json:"forecast"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Forecast, 1)
	assert.Equal(t, "2026-10-19", resp.Forecast[0]["date"])
	assert.Equal(t, "Clear", resp.Forecast[0]["condition"])
}

func TestWeatherToolExecute_InvalidStartDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, weatherFixtureJSON())
	}))
	defer server.Close()

	tool := &WeatherTool{Client: server.Client(), BaseURL: server.URL}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"Rome","start":"2026/10/19"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestWeatherToolExecute_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tool := &WeatherTool{Client: server.Client(), BaseURL: server.URL}

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"Rome"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWeatherToolExecute_RequiresCity(t *testing.T) {
	tool := &WeatherTool{}
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city is required")
}

func weatherFixtureJSON() string {
	return `{
  "current_condition": [
    {
      "temp_C": "18",
      "FeelsLikeC": "17",
      "weatherDesc": [{"value":"Sunny"}],
      "humidity": "60",
      "windspeedKmph": "9"
    }
  ],
  "nearest_area": [
    {
      "areaName": [{"value":"Rome"}],
      "region": [{"value":"Lazio"}],
      "country": [{"value":"Italy"}]
    }
  ],
  "weather": [
    {
      "date": "2026-10-18",
      "maxtempC": "21",
      "mintempC": "12",
      "hourly": [{"weatherDesc": [{"value":"Sunny"}]}]
    },
    {
      "date": "2026-10-19",
      "maxtempC": "20",
      "mintempC": "11",
      "hourly": [{"weatherDesc": [{"value":"Clear"}]}]
    },
    {
      "date": "2026-10-20",
      "maxtempC": "17",
      "mintempC": "10",
      "hourly": [{"weatherDesc": [{"value":"Light rain"}]}]
    }
  ]
}`
}
