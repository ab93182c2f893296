package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses a duration string and falls back to defaultValue when empty.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", candidate)
	}
	return d, nil
}

// IdleWindow is the stream idle guard; zero means disabled.
func (e ExchangeConfig) IdleWindow() (time.Duration, error) {
	return DurationOrDefault(e.IdleTimeout, DefaultExchangeIdleTimeout)
}

func (a APIConfig) HeaderTimeout() (time.Duration, error) {
	return DurationOrDefault(a.ResponseHeaderTimeout, DefaultAPIResponseHeaderTimeout)
}

func (w WeatherToolConfig) RequestTimeout() (time.Duration, error) {
	return DurationOrDefault(w.Timeout, DefaultWeatherToolTimeout)
}
