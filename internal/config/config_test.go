package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Daclify/daclifycore/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daclify.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
group = "mygroup"
addr = ":9300"
cors_origins = ["https://app.example.com"]

[auth]
jwt_secret = "sekrit"

[sidecar]
hub_url = "http://localhost:9400"

[[hooks]]
operation = "propose"
hook_action = "notifynew"
enabled = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Group != "mygroup" || cfg.Addr != ":9300" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.DataPath != "daclify.db" {
		t.Fatalf("data_path should default, got %s", cfg.DataPath)
	}
	if cfg.Sidecar.HubURL != "http://localhost:9400" {
		t.Fatalf("sidecar hub url = %s", cfg.Sidecar.HubURL)
	}
	if len(cfg.Hooks) != 1 || cfg.Hooks[0].Action != "notifynew" || !cfg.Hooks[0].Enabled {
		t.Fatalf("unexpected hooks %+v", cfg.Hooks)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
group = "mygroup"
[auth]
jwt_secret = "sekrit"
`)
	t.Setenv("DACLIFY_GROUP", "othergroup")
	t.Setenv("DACLIFY_ADDR", ":9999")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Group != "othergroup" || cfg.Addr != ":9999" {
		t.Fatalf("environment must override the file, got %+v", cfg)
	}
}

func TestLoadFailures(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "group = [broken")); err == nil {
		t.Fatalf("malformed TOML should fail")
	}
}

func TestValidate(t *testing.T) {
	testlog.Start(t)
	valid := NodeConfig{
		Group:    "mygroup",
		Addr:     ":9200",
		DataPath: "daclify.db",
		Auth:     AuthConfig{AdminToken: "tok"},
	}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*NodeConfig)
	}{
		{"missing group", func(c *NodeConfig) { c.Group = "" }},
		{"missing addr", func(c *NodeConfig) { c.Addr = " " }},
		{"missing data path", func(c *NodeConfig) { c.DataPath = "" }},
		{"no auth material", func(c *NodeConfig) { c.Auth = AuthConfig{} }},
		{"hook without operation", func(c *NodeConfig) {
			c.Hooks = []HookConfig{{Action: "notifynew"}}
		}},
		{"hook without action", func(c *NodeConfig) {
			c.Hooks = []HookConfig{{Operation: "propose"}}
		}},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}

func TestWriteTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "daclify.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("existing file must not be clobbered without overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("the template must load cleanly: %v", err)
	}
	if cfg.Group == "" {
		t.Fatalf("template should carry a sample group")
	}
}
