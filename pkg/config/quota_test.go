package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadQuotas_EmptyPathUsesDefaults(t *testing.T) {
	table, err := LoadQuotas("")
	if err != nil {
		t.Fatalf("LoadQuotas() error = %v", err)
	}

	gpt4o, ok := table.Models["gpt4o"]
	if !ok {
		t.Fatal("default table missing gpt4o")
	}
	if gpt4o.Requests != 150 || time.Duration(gpt4o.Window) != 3*time.Hour {
		t.Errorf("gpt4o quota = %+v, want 150 per 3h", gpt4o)
	}

	mini, ok := table.Models["gpt4o_mini"]
	if !ok {
		t.Fatal("default table missing gpt4o_mini")
	}
	if mini.AliasOf != "gpt4o" || !mini.AutoThrottle {
		t.Errorf("gpt4o_mini = %+v, want auto-throttle alias of gpt4o", mini)
	}
}

func TestLoadQuotas_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotas.toml")
	content := `
[models.custom]
requests = 20
window = "1h"
burst = 4

[models.custom_mini]
alias_of = "custom"
auto_throttle = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadQuotas(path)
	if err != nil {
		t.Fatalf("LoadQuotas() error = %v", err)
	}

	custom := table.Models["custom"]
	if custom.Requests != 20 || time.Duration(custom.Window) != time.Hour || custom.Burst != 4 {
		t.Errorf("custom quota = %+v, want 20 per 1h burst 4", custom)
	}
	if alias := table.Models["custom_mini"]; alias.AliasOf != "custom" || !alias.AutoThrottle {
		t.Errorf("custom_mini = %+v, want auto-throttle alias of custom", alias)
	}
}

func TestLoadQuotas_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotas.toml")
	if err := os.WriteFile(path, []byte(`[models.broken`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadQuotas(path); err == nil {
		t.Error("LoadQuotas() on malformed file: expected error")
	}
}
