package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Database.Path != "~/.hooked/data.db" {
		t.Errorf("Database.Path: got %q, want ~/.hooked/data.db", cfg.Database.Path)
	}
	if cfg.Database.Version != 1 {
		t.Errorf("Database.Version: got %d, want 1", cfg.Database.Version)
	}
	if cfg.Database.OpenTimeout.Duration != time.Second {
		t.Errorf("OpenTimeout: got %s, want 1s", cfg.Database.OpenTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	// Load with empty path and no default config file → returns defaults
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "~/.hooked/data.db" {
		t.Errorf("Database.Path: got %q", cfg.Database.Path)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[database]
path = "/tmp/hooked-test.db"
version = 3
open_timeout = "250ms"

[logging]
level = "debug"
format = "json"

[[stores]]
name = "fruits"
key_path = ["id"]
auto_increment = true
data = [
  { name = "apple", color = "red" },
  { name = "banana", color = "yellow", weight = 120 },
]

  [[stores.indexes]]
  name = "by_name"
  key_path = ["name"]
  unique = true

[[stores]]
name = "settings"
`
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/tmp/hooked-test.db" {
		t.Errorf("Database.Path: got %q", cfg.Database.Path)
	}
	if cfg.Database.Version != 3 {
		t.Errorf("Database.Version: got %d", cfg.Database.Version)
	}
	if cfg.Database.OpenTimeout.Duration != 250*time.Millisecond {
		t.Errorf("OpenTimeout: got %s", cfg.Database.OpenTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if len(cfg.Stores) != 2 {
		t.Fatalf("Stores: got %d, want 2", len(cfg.Stores))
	}
	fruits := cfg.Stores[0]
	if fruits.Name != "fruits" || !fruits.AutoIncrement || len(fruits.KeyPath) != 1 {
		t.Errorf("fruits: got %+v", fruits)
	}
	if len(fruits.Indexes) != 1 || !fruits.Indexes[0].Unique {
		t.Errorf("fruits indexes: got %+v", fruits.Indexes)
	}
	if len(fruits.Data) != 2 {
		t.Fatalf("fruits data: got %d items", len(fruits.Data))
	}
	first, ok := fruits.Data[0].(map[string]any)
	if !ok || first["name"] != "apple" {
		t.Errorf("fruits data[0]: got %#v", fruits.Data[0])
	}
	if cfg.Stores[1].Inline() {
		t.Error("settings should use out-of-line keys")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadBadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("{{invalid"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoadBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[database]\nopen_timeout = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	got := ExpandHome("~/foo/bar")
	want := filepath.Join(home, "foo/bar")
	if got != want {
		t.Errorf("ExpandHome: got %q, want %q", got, want)
	}

	// Non-home path unchanged
	if got := ExpandHome("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandHome: got %q, want /absolute/path", got)
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Path = "/var/lib/hooked.db"
	if got := cfg.DatabasePath(); got != "/var/lib/hooked.db" {
		t.Errorf("DatabasePath: got %q", got)
	}
}
