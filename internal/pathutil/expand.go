package pathutil

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand resolves environment variables and "~/" home shortcuts.
func Expand(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := homeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(expanded, "~"), "/"))
	}

	return filepath.Clean(expanded), nil
}

// ReadText expands path and returns the trimmed file contents. An empty path
// yields an empty string.
func ReadText(path string) (string, error) {
	expanded, err := Expand(path)
	if err != nil || expanded == "" {
		return "", err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", expanded, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func homeDir() (string, error) {
	candidates := []func() string{
		func() string {
			home, _ := os.UserHomeDir()
			return home
		},
		func() string {
			if u, err := user.Current(); err == nil {
				return u.HomeDir
			}
			return ""
		},
	}

	for _, candidate := range candidates {
		home := strings.TrimSpace(candidate())
		if home != "" && home != "~" && !strings.HasPrefix(home, "~/") {
			return home, nil
		}
	}
	return "", fmt.Errorf("HOME is not set or not fully resolved")
}
