package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todo.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.DataFile != "data/data.json" {
		t.Fatalf("unexpected default values: %#v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
data_file = "file/data.json"
users_file = "file/users.json"
cache_ttl = "5s"
listen_addr = ":9000"
`)
	t.Setenv("TODO_CACHE_TTL", "1m")
	t.Setenv("TODO_DEBUG", "true")
	t.Setenv("TODO_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataFile != "file/data.json" || cfg.UsersFile != "file/users.json" {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("listen addr: %s", cfg.ListenAddr)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("expected env to override file, got %s", cfg.CacheTTL)
	}
	if !cfg.Debug || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("env values not applied: %#v", cfg)
	}
	if cfg.BackupDir != DefaultBackupDir {
		t.Fatalf("expected default backup dir to survive, got %s", cfg.BackupDir)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "unknown key", file: "colour = \"blue\"\n", want: "unknown key"},
		{name: "bad toml", file: "data_file = \n", want: "decode"},
		{name: "bad duration", env: map[string]string{"TODO_CACHE_TTL": "soon"}, want: "parse env"},
		{name: "negative ttl", env: map[string]string{"TODO_CACHE_TTL": "-1s"}, want: "cache_ttl"},
		{name: "zero token ttl", env: map[string]string{"TODO_TOKEN_TTL": "0s"}, want: "token_ttl"},
		{name: "empty data file", file: "data_file = \"\"\n", want: "data_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}
