package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

type Config struct {
	WorldID string `yaml:"world_id"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	SaveEveryTicks int `yaml:"save_every_ticks"`

	CreativePageSize   int `yaml:"creative_page_size"`
	StatisticsPageSize int `yaml:"statistics_page_size"`

	Persistence Persistence `yaml:"persistence"`

	// DefaultDisplayEntry is the icon entry given to newly created statistics.
	DefaultDisplayEntry string `yaml:"default_display_entry"`

	// Admins maps user names to operator levels; level >= 1 is elevated.
	Admins map[string]int `yaml:"admins"`

	Digest string `yaml:"-"`
}

type Persistence struct {
	Backend  string `yaml:"backend"`
	FileName string `yaml:"file_name"`
	BoltName string `yaml:"bolt_name"`
	Audit    bool   `yaml:"audit"`
	Index    bool   `yaml:"index"`
	// Archive keeps one dated copy of the store per day under data/archives.
	Archive bool `yaml:"archive"`
}

func Defaults() Config {
	return Config{
		WorldID:            "overworld",
		TickRateHz:         5,
		SaveEveryTicks:     300,
		CreativePageSize:   36,
		StatisticsPageSize: 40,
		Persistence: Persistence{
			Backend:  BackendFile,
			FileName: "custom_statistics.snap.zst",
			BoltName: "custom_statistics.db",
			Audit:    true,
			Index:    true,
			Archive:  true,
		},
		DefaultDisplayEntry: "paper",
		Admins:              map[string]int{},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("topper.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("topper.yaml: %w", err)
	}
	sum := sha256.Sum256(b)
	cfg.Digest = hex.EncodeToString(sum[:])
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.WorldID = strings.TrimSpace(c.WorldID)
	c.Persistence.Backend = strings.ToLower(strings.TrimSpace(c.Persistence.Backend))
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = BackendFile
	}
	if c.Persistence.FileName == "" {
		c.Persistence.FileName = "custom_statistics.snap.zst"
	}
	if c.Persistence.BoltName == "" {
		c.Persistence.BoltName = "custom_statistics.db"
	}
	if c.Admins == nil {
		c.Admins = map[string]int{}
	}
	// Users are matched case-sensitively first, then lowercased.
	for name, lvl := range c.Admins {
		if low := strings.ToLower(name); low != name {
			if _, ok := c.Admins[low]; !ok {
				c.Admins[low] = lvl
			}
		}
	}
}

func (c Config) Validate() error {
	if c.WorldID == "" {
		return fmt.Errorf("world_id must not be empty")
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 100 {
		return fmt.Errorf("tick_rate_hz must be in [1, 100]")
	}
	if c.SaveEveryTicks <= 0 {
		return fmt.Errorf("save_every_ticks must be > 0")
	}
	if c.CreativePageSize <= 0 {
		return fmt.Errorf("creative_page_size must be > 0")
	}
	if c.StatisticsPageSize <= 0 {
		return fmt.Errorf("statistics_page_size must be > 0")
	}
	switch c.Persistence.Backend {
	case BackendFile, BackendBolt:
	default:
		return fmt.Errorf("persistence.backend must be %q or %q, got %q", BackendFile, BackendBolt, c.Persistence.Backend)
	}
	for name, lvl := range c.Admins {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("admins: empty user name")
		}
		if lvl < 0 {
			return fmt.Errorf("admins: %s level must be >= 0", name)
		}
	}
	return nil
}
