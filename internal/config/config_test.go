package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "topper.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadEmptyPathIsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CreativePageSize != 36 || cfg.StatisticsPageSize != 40 || cfg.Persistence.Backend != BackendFile {
		t.Fatalf("defaults: %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	p := writeYAML(t, `
world_id: " nether "
save_every_ticks: 50
persistence:
  backend: BOLT
admins:
  Notch: 4
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorldID != "nether" || cfg.SaveEveryTicks != 50 || cfg.Persistence.Backend != BackendBolt {
		t.Fatalf("cfg: %#v", cfg)
	}
	if cfg.CreativePageSize != 36 {
		t.Fatalf("unset field lost its default: %d", cfg.CreativePageSize)
	}
	if cfg.Admins["Notch"] != 4 || cfg.Admins["notch"] != 4 {
		t.Fatalf("admins: %#v", cfg.Admins)
	}
	if cfg.Digest == "" {
		t.Fatalf("digest not set")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, body := range []string{
		"persistence:\n  backend: redis\n",
		"creative_page_size: 0\n",
		"tick_rate_hz: 500\n",
		"admins:\n  bob: -1\n",
	} {
		if _, err := Load(writeYAML(t, body)); err == nil || !strings.Contains(err.Error(), "topper.yaml") {
			t.Fatalf("%q: err=%v", body, err)
		}
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "topper.yaml"))
	if err != nil {
		t.Fatalf("configs/topper.yaml: %v", err)
	}
	if cfg.Admins["notch"] != 4 || !cfg.Persistence.Archive || cfg.Digest == "" {
		t.Fatalf("cfg: %#v", cfg)
	}
}
