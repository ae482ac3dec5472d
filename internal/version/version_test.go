package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, "mcpapi dev") {
		t.Errorf("Info() should start with 'mcpapi dev', got: %s", info)
	}
	if !strings.Contains(info, runtime.Version()) {
		t.Errorf("Info() should contain Go version, got: %s", info)
	}
}

func TestShort(t *testing.T) {
	if got := Short(); got != "dev" {
		t.Errorf("Short() = %q, want %q (default)", got, "dev")
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "mcpapi/dev" {
		t.Errorf("UserAgent() = %q, want %q", got, "mcpapi/dev")
	}
}

func TestMap(t *testing.T) {
	m := Map()

	for _, key := range []string{"version", "git_commit", "build_date", "go_version"} {
		if _, ok := m[key]; !ok {
			t.Errorf("Map() missing key %q", key)
		}
	}
	if m["go_version"] != runtime.Version() {
		t.Errorf("Map()[\"go_version\"] = %q, want %q", m["go_version"], runtime.Version())
	}
}
