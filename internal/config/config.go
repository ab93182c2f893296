package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/kaiwa/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Config struct {
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	API      APIConfig      `koanf:"api" yaml:"api"`
	Exchange ExchangeConfig `koanf:"exchange" yaml:"exchange"`
	Prompts  PromptsConfig  `koanf:"prompts" yaml:"prompts"`
	Tools    ToolsConfig    `koanf:"tools" yaml:"tools"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level" yaml:"log_level"`
}

type APIConfig struct {
	Endpoint              string  `koanf:"endpoint" yaml:"endpoint"`
	Key                   string  `koanf:"key" yaml:"key"`
	Model                 string  `koanf:"model" yaml:"model"`
	Flavor                string  `koanf:"flavor" yaml:"flavor"`
	Temperature           float64 `koanf:"temperature" yaml:"temperature"`
	ResponseHeaderTimeout string  `koanf:"response_header_timeout" yaml:"response_header_timeout"`
}

type ExchangeConfig struct {
	MaxToolRounds int `koanf:"max_tool_rounds" yaml:"max_tool_rounds"`
	// IdleTimeout of "0" disables the idle guard.
	IdleTimeout string `koanf:"idle_timeout" yaml:"idle_timeout"`
	EventBuffer int    `koanf:"event_buffer" yaml:"event_buffer"`
	MaxParallel int    `koanf:"max_parallel" yaml:"max_parallel"`
}

type PromptsConfig struct {
	System     string `koanf:"system" yaml:"system"`
	SystemFile string `koanf:"system_file" yaml:"system_file"`
}

type ToolsConfig struct {
	Enabled []string          `koanf:"enabled" yaml:"enabled"`
	Weather WeatherToolConfig `koanf:"weather" yaml:"weather"`
}

type WeatherToolConfig struct {
	BaseURL string `koanf:"base_url" yaml:"base_url"`
	Timeout string `koanf:"timeout" yaml:"timeout"`
}

const (
	DefaultServerLogLevel           = "info"
	DefaultAPIEndpoint              = "https://api.cohere.com/v2/chat"
	DefaultAPILegacyEndpoint        = "https://api.cohere.com/v1/chat"
	DefaultAPIModel                 = "command-a-03-2025"
	DefaultAPIFlavor                = "v2"
	DefaultAPITemperature           = 0.1
	DefaultAPIResponseHeaderTimeout = "30s"
	DefaultExchangeMaxToolRounds    = 8
	DefaultExchangeIdleTimeout      = "60s"
	DefaultExchangeEventBuffer      = 64
	DefaultExchangeMaxParallel      = 0
	DefaultSystemPrompt             = "You are Kaiwa, a helpful HR assistant. Use the available tools to look up employees, the weather and the current time. Answer concisely."
	DefaultWeatherToolBaseURL       = "https://wttr.in"
	DefaultWeatherToolTimeout       = "10s"

	EnvPrefix    = "KAIWA_"
	APIKeyEnvVar = "COHERE_API_KEY"
)

// FlagKeys maps command line flag names to config keys. Other flags are
// not part of the configuration.
var FlagKeys = map[string]string{
	"log-level":       "server.log_level",
	"endpoint":        "api.endpoint",
	"model":           "api.model",
	"flavor":          "api.flavor",
	"temperature":     "api.temperature",
	"max-tool-rounds": "exchange.max_tool_rounds",
	"idle-timeout":    "exchange.idle_timeout",
	"system-prompt":   "prompts.system",
	"tools":           "tools.enabled",
}

// DefaultEnabledTools is the built-in tool set offered to the model.
var DefaultEnabledTools = []string{"find_employees", "get_current_time", "get_employee_detailed_data", "get_weather"}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.log_level":            DefaultServerLogLevel,
		"api.endpoint":                DefaultAPIEndpoint,
		"api.key":                     "",
		"api.model":                   DefaultAPIModel,
		"api.flavor":                  DefaultAPIFlavor,
		"api.temperature":             DefaultAPITemperature,
		"api.response_header_timeout": DefaultAPIResponseHeaderTimeout,
		"exchange.max_tool_rounds":    DefaultExchangeMaxToolRounds,
		"exchange.idle_timeout":       DefaultExchangeIdleTimeout,
		"exchange.event_buffer":       DefaultExchangeEventBuffer,
		"exchange.max_parallel":       DefaultExchangeMaxParallel,
		"prompts.system":              DefaultSystemPrompt,
		"prompts.system_file":         "",
		"tools.enabled":               DefaultEnabledTools,
		"tools.weather.base_url":      DefaultWeatherToolBaseURL,
		"tools.weather.timeout":       DefaultWeatherToolTimeout,
	}
}

// DefaultPath is the global config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kaiwa", "config.yaml")
}

// Load resolves the configuration: defaults, then the config file, then
// KAIWA_* environment variables, then command line flags.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaultValues := defaults()
	for key, value := range defaultValues {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		expanded, err := pathutil.Expand(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", expanded, err)
		}
	} else if globalPath := DefaultPath(); globalPath != "" {
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	envKeys := envKeyIndex(defaultValues)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKey(envKeys, s)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if cmd != nil {
		flags := cmd.Flags()
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv(APIKeyEnvVar)
	}
	cfg.API.Flavor = strings.ToLower(strings.TrimSpace(cfg.API.Flavor))
	// a v1 flavor without an explicit endpoint talks to the v1 chat route
	if cfg.API.Flavor == "v1" && cfg.API.Endpoint == DefaultAPIEndpoint {
		cfg.API.Endpoint = DefaultAPILegacyEndpoint
	}

	if err := resolvePrompt(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyIndex maps KAIWA_SECTION_SOME_KEY spellings to dotted keys so that
// keys containing underscores survive the env transform.
func envKeyIndex(keys map[string]interface{}) map[string]string {
	index := make(map[string]string, len(keys))
	for key := range keys {
		index[strings.ReplaceAll(key, ".", "_")] = key
	}
	return index
}

func envKey(index map[string]string, name string) string {
	raw := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if key, ok := index[raw]; ok {
		return key
	}
	return strings.Replace(raw, "_", ".", 1)
}

// resolvePrompt replaces prompts.system with the contents of
// prompts.system_file when one is configured.
func resolvePrompt(cfg *Config) error {
	if strings.TrimSpace(cfg.Prompts.SystemFile) == "" {
		return nil
	}

	expanded, err := pathutil.Expand(cfg.Prompts.SystemFile)
	if err != nil {
		return err
	}
	text, err := pathutil.ReadText(expanded)
	if err != nil {
		return fmt.Errorf("prompts.system_file: %w", err)
	}
	cfg.Prompts.SystemFile = expanded
	if text != "" {
		cfg.Prompts.System = text
	}
	return nil
}
