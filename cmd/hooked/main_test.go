package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `
[database]
path = %q
version = 1

[logging]
level = "warn"

[[stores]]
name = "fruits"
key_path = ["id"]
auto_increment = true
data = [
  { name = "apple", color = "red" },
  { name = "banana", color = "yellow" },
  { name = "cherry", color = "red" },
]

  [[stores.indexes]]
  name = "by_name"
  key_path = ["name"]
  unique = true

  [[stores.indexes]]
  name = "by_color"
  key_path = ["color"]

[[stores]]
name = "settings"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	cfg := strings.Replace(testConfig, "%q", `"`+filepath.Join(dir, "data.db")+`"`, 1)
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the CLI and returns stdout. stdin may be empty.
func run(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, stdin, args...)
	if err != nil {
		t.Fatalf("hooked %v: %v", args, err)
	}
	return out
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func decode(t *testing.T, line string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		t.Fatalf("bad JSON %q: %v", line, err)
	}
	return v
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "/nonexistent/config.toml", "", "version")
	if strings.TrimSpace(out) != "hooked dev" {
		t.Fatalf("version output = %q", out)
	}
}

func TestStoresAndInfo(t *testing.T) {
	cfg := writeConfig(t)
	out := lines(mustRun(t, cfg, "", "stores"))
	if len(out) != 2 || !strings.Contains(out[0], `"fruits"`) || !strings.Contains(out[1], `"settings"`) {
		t.Fatalf("stores output = %v", out)
	}

	info := decode(t, mustRun(t, cfg, "", "info")).(map[string]any)
	if info["version"] != 1.0 || info["instance_id"] == "" {
		t.Fatalf("info = %v", info)
	}
}

func TestGetAndScan(t *testing.T) {
	cfg := writeConfig(t)

	got := decode(t, mustRun(t, cfg, "", "get", "fruits", "2")).(map[string]any)
	if got["name"] != "banana" {
		t.Fatalf("get 2 = %v", got)
	}
	if out := strings.TrimSpace(mustRun(t, cfg, "", "get", "fruits", "99")); out != "null" {
		t.Fatalf("missing get = %q", out)
	}
	got = decode(t, mustRun(t, cfg, "", "get", "fruits", "--index", "by_name", "cherry", "--keys")).(map[string]any)
	if got["key"] != 3.0 {
		t.Fatalf("index get with keys = %v", got)
	}

	out := lines(mustRun(t, cfg, "", "scan", "fruits", "--direction", "prev", "--where", `color="red"`))
	if len(out) != 2 || !strings.Contains(out[0], "cherry") || !strings.Contains(out[1], "apple") {
		t.Fatalf("scan prev red = %v", out)
	}

	out = lines(mustRun(t, cfg, "", "scan", "fruits", "--lower", "2", "--limit", "1"))
	if len(out) != 1 || !strings.Contains(out[0], "banana") {
		t.Fatalf("scan from 2 limit 1 = %v", out)
	}

	out = lines(mustRun(t, cfg, "", "scan", "fruits", "--index", "by_color", "--direction", "nextunique"))
	if len(out) != 2 {
		t.Fatalf("nextunique over colors = %v", out)
	}
}

func TestPutMergeAndDelete(t *testing.T) {
	cfg := writeConfig(t)

	key := strings.TrimSpace(mustRun(t, cfg, "", "put", "fruits", `{"name":"kiwi","color":"green"}`))
	if key != "4" {
		t.Fatalf("put key = %q, want 4", key)
	}
	mustRun(t, cfg, "", "put", "fruits", "--key", "4", `{"color":"brown"}`)
	got := decode(t, mustRun(t, cfg, "", "get", "fruits", "4")).(map[string]any)
	if got["name"] != "kiwi" || got["color"] != "brown" {
		t.Fatalf("after merge = %v", got)
	}

	mustRun(t, cfg, "", "put", "settings", "--key", "theme", "--replace", "dark")
	if out := strings.TrimSpace(mustRun(t, cfg, "", "get", "settings", "theme")); out != `"dark"` {
		t.Fatalf("settings theme = %q", out)
	}

	mustRun(t, cfg, "", "del", "fruits", "4")
	if out := strings.TrimSpace(mustRun(t, cfg, "", "get", "fruits", "4")); out != "null" {
		t.Fatalf("after del = %q", out)
	}

	mustRun(t, cfg, "", "del", "fruits", "--lower", "2")
	if out := lines(mustRun(t, cfg, "", "scan", "fruits")); len(out) != 1 {
		t.Fatalf("after range del = %v", out)
	}
}

func TestDelNeedsKeyOrRange(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, cfg, "", "del", "fruits"); err == nil {
		t.Fatal("del without key or range should fail")
	}
}

func TestPutWatch(t *testing.T) {
	cfg := writeConfig(t)
	out := lines(mustRun(t, cfg, "", "put", "--watch", "settings", "--key", `"a"`, "--replace", "1"))
	if len(out) != 3 {
		t.Fatalf("put --watch output = %v", out)
	}
	wake := decode(t, out[0]).(map[string]any)
	if wake["count"] != 0.0 || wake["keys"] != nil {
		t.Fatalf("wake = %v", wake)
	}
	write := decode(t, out[1]).(map[string]any)
	if write["count"] != 1.0 {
		t.Fatalf("write notification = %v", write)
	}
}

func TestImport(t *testing.T) {
	cfg := writeConfig(t)
	yml := `
- name: fig
  color: purple
- name: lime
  color: green
`
	res := decode(t, mustRun(t, cfg, yml, "import", "fruits", "-")).(map[string]any)
	if res["imported"] != 2.0 {
		t.Fatalf("import = %v", res)
	}
	if out := lines(mustRun(t, cfg, "", "scan", "fruits")); len(out) != 5 {
		t.Fatalf("after import %d fruits, want 5", len(out))
	}

	// a duplicate unique name rolls back the whole import
	dup := `[{"name": "plum"}, {"name": "apple"}]`
	if _, err := run(t, cfg, dup, "import", "fruits", "-"); err == nil {
		t.Fatal("import with duplicate unique key should fail")
	}
	if out := strings.TrimSpace(mustRun(t, cfg, "", "get", "fruits", "--index", "by_name", "plum")); out != "null" {
		t.Fatalf("plum should not be imported, got %q", out)
	}

	res = decode(t, mustRun(t, cfg, `[{"name": "solo"}]`, "import", "--clear", "fruits", "-")).(map[string]any)
	if res["imported"] != 1.0 {
		t.Fatalf("import --clear = %v", res)
	}
	if out := lines(mustRun(t, cfg, "", "scan", "fruits")); len(out) != 1 {
		t.Fatalf("after import --clear = %v", out)
	}
}

func TestWatch(t *testing.T) {
	cfg := writeConfig(t)
	out := lines(mustRun(t, cfg, "{\"name\":\"fig\"}\n{\"name\":\"lime\"}\n", "watch", "fruits"))
	if len(out) != 3 {
		t.Fatalf("watch output = %v", out)
	}
	last := decode(t, out[2]).(map[string]any)
	if last["count"] != 2.0 {
		t.Fatalf("last notification = %v", last)
	}
	ks := last["keys"].([]any)
	if len(ks) != 1 || ks[0] != 5.0 {
		t.Fatalf("last keys = %v", ks)
	}
}

func TestUnknownStore(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, cfg, "", "get", "nope", "1"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want store not found", err)
	}
}

func TestMetricsFlag(t *testing.T) {
	cfg := writeConfig(t)
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config", cfg, "--metrics", "get", "fruits", "1"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut.String(), `hooked_reads_total{store="fruits",mode="get"}`) {
		t.Fatalf("metrics output missing read counter: %q", errOut.String())
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{`"1"`, `"1"`},
		{"abc", `"abc"`},
		{`[1,"a"]`, `[1,"a"]`},
	}
	for _, tt := range tests {
		k, err := parseKey(tt.in)
		if err != nil {
			t.Fatalf("parseKey(%q): %v", tt.in, err)
		}
		if k.String() != tt.want {
			t.Errorf("parseKey(%q) = %s, want %s", tt.in, k, tt.want)
		}
	}
	if _, err := parseKey("true"); err == nil {
		t.Error("boolean keys should be rejected")
	}
}
