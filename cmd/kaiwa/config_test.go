package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/kaiwa/internal/config"

	"github.com/spf13/cobra"
)

func TestConfigInitCmd(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := configInitCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("Config init failed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".kaiwa", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file not created at %s", configPath)
	}

	loaded, err := config.Load(nil)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if loaded.API.Model != config.DefaultAPIModel {
		t.Errorf("expected model %s from template, got %s", config.DefaultAPIModel, loaded.API.Model)
	}
	if len(loaded.Tools.Enabled) != len(config.DefaultEnabledTools) {
		t.Errorf("expected template to enable %v, got %v", config.DefaultEnabledTools, loaded.Tools.Enabled)
	}

	out.Reset()
	if err := configInitCmd.RunE(cmd, nil); err != nil {
		t.Errorf("Config init should succeed when config exists: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected existing config notice, got %q", out.String())
	}
}

func TestConfigViewCmd_RedactsKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.APIKeyEnvVar, "sk-secret-123456")

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := configViewCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("Config view failed: %v", err)
	}
	if strings.Contains(out.String(), "sk-secret-123456") {
		t.Fatalf("config view leaked the api key:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "sk************56") {
		t.Errorf("expected masked key in output:\n%s", out.String())
	}
}

func TestRedactConfigSecrets(t *testing.T) {
	original := &config.Config{API: config.APIConfig{Key: "sk-secret-123456", Model: "m1"}}

	redacted := redactConfigSecrets(original)

	if redacted.API.Key == original.API.Key {
		t.Error("API key not redacted")
	}
	if original.API.Key != "sk-secret-123456" {
		t.Error("original config was modified")
	}
	if redacted.API.Model != "m1" {
		t.Errorf("non-secret fields must be kept, got %s", redacted.API.Model)
	}
	if redactConfigSecrets(nil) != nil {
		t.Error("nil config must stay nil")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcd", "****"},
		{"abcdef", "ab**ef"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
