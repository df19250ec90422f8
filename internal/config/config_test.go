package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agent.yaml")

	raw, err := yaml.Marshal(map[string]any{
		"app_origin":                 "https://preview.example.com",
		"push_url":                   "https://gw.example.com",
		"permission_prompt_delay_ms": 500,
		"log_level":                  "debug",
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(cfgPath, raw, 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppOrigin != "https://preview.example.com" {
		t.Errorf("app_origin %q", cfg.AppOrigin)
	}
	if cfg.PushURL != "https://gw.example.com" {
		t.Errorf("push_url %q", cfg.PushURL)
	}
	if cfg.PermissionPromptDelayMs != 500 {
		t.Errorf("permission_prompt_delay_ms %d", cfg.PermissionPromptDelayMs)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level %q", cfg.LogLevel)
	}
	// Fields absent from the file keep their defaults
	if cfg.SocketPath == "" {
		t.Error("socket_path default lost")
	}
	if cfg.DefaultIcon != Default().DefaultIcon {
		t.Errorf("default_icon %q", cfg.DefaultIcon)
	}
}

func TestSaveToRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agent.yaml")

	cfg := Default()
	cfg.AppOrigin = "https://preview.example.com"
	cfg.PushToken = "gw-token"
	if err := SaveTo(cfg, cfgPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode %v, want 0600", info.Mode().Perm())
	}

	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var onDisk map[string]any
	if err := yaml.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if onDisk["app_origin"] != "https://preview.example.com" {
		t.Errorf("app_origin on disk %v", onDisk["app_origin"])
	}
	if onDisk["push_token"] != "gw-token" {
		t.Errorf("push_token on disk %v", onDisk["push_token"])
	}
}
