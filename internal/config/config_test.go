package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studiod.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	fc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Server.Listen != ":3000" || fc.Server.BasePath != "/api" {
		t.Fatalf("server = %+v", fc.Server)
	}
	if len(fc.Services) != 3 {
		t.Fatalf("stock services = %d, want 3", len(fc.Services))
	}
	if err := fc.Validate(); err != nil {
		t.Fatalf("stock config must validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
listen = ":8080"
base_path = "/control"

[log]
level = "debug"

[health]
interval = "5s"
readiness_budget = "90s"

[store]
type = "sqlite"
path = "/tmp/studiod.db"

[[services]]
name = "lmStudio"
port = 1234
health_url = "http://localhost:1234/v1/models"
commands = ["lms server start"]

[[services]]
name = "renderer"
display_name = "Render Queue"
port = 9090
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Server.Listen != ":8080" || fc.Server.BasePath != "/control" {
		t.Fatalf("server = %+v", fc.Server)
	}
	if fc.Health.Interval != 5*time.Second || fc.Health.ReadinessBudget != 90*time.Second {
		t.Fatalf("health = %+v", fc.Health)
	}
	if fc.Store.Type != "sqlite" || fc.Store.Path != "/tmp/studiod.db" {
		t.Fatalf("store = %+v", fc.Store)
	}
	// The file's service table replaces the stock set, never merges.
	if len(fc.Services) != 2 {
		t.Fatalf("services = %d, want 2", len(fc.Services))
	}
	if fc.Services[1].Name != "renderer" || fc.Services[1].Port != 9090 {
		t.Fatalf("services[1] = %+v", fc.Services[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadTables(t *testing.T) {
	cases := map[string]FileConfig{
		"empty name":     {Services: []ServiceConfig{{Port: 80}}},
		"reserved name":  {Services: []ServiceConfig{{Name: "mainServer", Port: 80}}},
		"duplicate name": {Services: []ServiceConfig{{Name: "a", Port: 80}, {Name: "a", Port: 81}}},
		"zero port":      {Services: []ServiceConfig{{Name: "a"}}},
		"port overflow":  {Services: []ServiceConfig{{Name: "a", Port: 70000}}},
	}
	for label, fc := range cases {
		if err := fc.Validate(); err == nil {
			t.Errorf("%s: expected validation error", label)
		}
	}
}

func TestDescriptorDefaults(t *testing.T) {
	fc := FileConfig{
		Log: LogConfig{Dir: "/var/log/studiod"},
		Services: []ServiceConfig{
			{Name: "comfyUI", Port: 8188},
			{Name: "lmStudio", DisplayName: "LM Studio", Port: 1234, LogDir: "/custom"},
		},
	}
	descs := fc.Descriptors()
	if descs[0].DisplayName != "comfyUI" {
		t.Fatalf("display name not defaulted: %q", descs[0].DisplayName)
	}
	if descs[0].LogDir != "/var/log/studiod" {
		t.Fatalf("log dir not defaulted: %q", descs[0].LogDir)
	}
	if descs[1].LogDir != "/custom" {
		t.Fatalf("explicit log dir overridden: %q", descs[1].LogDir)
	}
}
