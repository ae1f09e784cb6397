package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/kanban-sync/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

type boardConfigValues struct {
	BaseURL    string
	Timeout    time.Duration
	Offline    bool
	Backend    string
	Debounce   time.Duration
	HistoryMax int
	Level      string
	Format     string
}

func genBoardConfigValues(t *rapid.T) boardConfigValues {
	return boardConfigValues{
		BaseURL:    "http://" + rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "host") + ".test/api",
		Timeout:    time.Duration(rapid.IntRange(1, 120).Draw(t, "timeout")) * time.Second,
		Offline:    rapid.Bool().Draw(t, "offline"),
		Backend:    rapid.SampledFrom([]string{models.BackendFile, models.BackendSQLite}).Draw(t, "backend"),
		Debounce:   time.Duration(rapid.IntRange(0, 5000).Draw(t, "debounce")) * time.Millisecond,
		HistoryMax: rapid.IntRange(0, 1000).Draw(t, "history"),
		Level:      rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(t, "level"),
		Format:     rapid.SampledFrom([]string{"text", "json"}).Draw(t, "format"),
	}
}

func mustWriteBoardconfig(t *testing.T, dir string, v boardConfigValues) {
	t.Helper()
	content := fmt.Sprintf(`remote:
  base_url: %s
  timeout: %s
offline_mode: %v
persistence:
  backend: %s
  debounce: %s
history:
  limit: %d
log:
  level: %s
  format: %s
`, v.BaseURL, v.Timeout, v.Offline, v.Backend, v.Debounce, v.HistoryMax, v.Level, v.Format)
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", ConfigFileName, err)
	}
}

// Property: every value written to .boardconfig is read back unchanged and
// the loaded configuration validates.
func TestProperty_ConfigRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := genBoardConfigValues(rt)
		dir := t.TempDir()
		mustWriteBoardconfig(t, dir, v)

		cm := NewConfigurationManager(dir)
		cfg, err := cm.LoadConfig()
		if err != nil {
			rt.Fatalf("LoadConfig failed: %v", err)
		}
		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("ValidateConfig failed: %v", err)
		}

		if cfg.Remote.BaseURL != v.BaseURL {
			rt.Errorf("Remote.BaseURL: got %q, want %q", cfg.Remote.BaseURL, v.BaseURL)
		}
		if cfg.Remote.Timeout != v.Timeout {
			rt.Errorf("Remote.Timeout: got %s, want %s", cfg.Remote.Timeout, v.Timeout)
		}
		if cfg.OfflineMode != v.Offline {
			rt.Errorf("OfflineMode: got %v, want %v", cfg.OfflineMode, v.Offline)
		}
		if cfg.Persistence.Backend != v.Backend {
			rt.Errorf("Persistence.Backend: got %q, want %q", cfg.Persistence.Backend, v.Backend)
		}
		if cfg.Persistence.Debounce != v.Debounce {
			rt.Errorf("Persistence.Debounce: got %s, want %s", cfg.Persistence.Debounce, v.Debounce)
		}
		if cfg.History.Limit != v.HistoryMax {
			rt.Errorf("History.Limit: got %d, want %d", cfg.History.Limit, v.HistoryMax)
		}
		if cfg.Log.Level != v.Level || cfg.Log.Format != v.Format {
			rt.Errorf("Log: got %+v, want %s/%s", cfg.Log, v.Level, v.Format)
		}
	})
}

// Property: a configuration with an unknown backend, log format or a
// negative limit is always rejected.
func TestProperty_ConfigValidationRejects(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cm := NewConfigurationManager(t.TempDir())
		cfg := DefaultConfig()

		switch rapid.IntRange(0, 2).Draw(rt, "invalidType") {
		case 0:
			cfg.Persistence.Backend = "x" + rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "backend")
		case 1:
			cfg.Log.Format = "x" + rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "format")
		case 2:
			cfg.History.Limit = rapid.IntRange(-1000, -1).Draw(rt, "limit")
		}

		if err := cm.ValidateConfig(cfg); err == nil {
			rt.Fatalf("expected validation error for %+v", cfg)
		}
	})
}
