package retrofit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/elderly/actionzone"
	"github.com/hazyhaar/elderly/engine"
	"github.com/hazyhaar/elderly/pagesource"
	"github.com/hazyhaar/elderly/rules"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// Config holds all retrofit configuration.
type Config struct {
	Listen string       `yaml:"listen"`
	DBPath string       `yaml:"db_path"`
	Engine EngineConfig `yaml:"engine"`
	Rules  RulesConfig  `yaml:"rules"`
	Fetch  FetchConfig  `yaml:"fetch"`
}

// EngineConfig mirrors engine.Config with names fit for a file.
type EngineConfig struct {
	Generation   string        `yaml:"generation"`   // semantic | rules
	Policy       string        `yaml:"policy"`       // baseline | always-split
	Materializer string        `yaml:"materializer"` // proxy | clone
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
	NoticeTTL    time.Duration `yaml:"notice_ttl"`
	FontSizePx   int           `yaml:"font_size_px"`
	LineHeight   float64       `yaml:"line_height"`
	MinTouchPx   int           `yaml:"min_touch_px"`
	ContentPct   int           `yaml:"content_percent"`
}

// RulesConfig controls rule document lookup.
type RulesConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Offline  bool          `yaml:"offline"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// FetchConfig controls how pages are obtained.
type FetchConfig struct {
	Headless     bool          `yaml:"headless"`
	BrowserURL   string        `yaml:"browser_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBody      int64         `yaml:"max_body"`
	AllowPrivate bool          `yaml:"allow_private"`
	UserAgent    string        `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8095"
	}
	if c.Engine.PollInterval <= 0 {
		c.Engine.PollInterval = 100 * time.Millisecond
	}
	if c.Engine.Debounce <= 0 {
		c.Engine.Debounce = 300 * time.Millisecond
	}
	if c.Engine.NoticeTTL <= 0 {
		c.Engine.NoticeTTL = 5 * time.Second
	}
	if c.Rules.BaseURL == "" && !c.Rules.Offline {
		c.Rules.BaseURL = rules.DefaultBaseURL
	}
	if c.Rules.CacheTTL <= 0 {
		c.Rules.CacheTTL = 7 * 24 * time.Hour
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
}

// engineConfig validates the engine section.
func (c *Config) engineConfig() (engine.Config, error) {
	gen, err := engine.ParseGeneration(c.Engine.Generation)
	if err != nil {
		return engine.Config{}, err
	}
	pol, err := semantic.ParsePolicy(c.Engine.Policy)
	if err != nil {
		return engine.Config{}, err
	}
	mat, err := actionzone.ParseMaterializer(c.Engine.Materializer)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Generation:   gen,
		Policy:       pol,
		Materializer: mat,
		PollInterval: c.Engine.PollInterval,
		Debounce:     c.Engine.Debounce,
		NoticeTTL:    c.Engine.NoticeTTL,
		Tuning: styles.Tuning{
			FontSizePx:     c.Engine.FontSizePx,
			LineHeight:     c.Engine.LineHeight,
			MinTouchPx:     c.Engine.MinTouchPx,
			ContentPercent: c.Engine.ContentPct,
		},
	}, nil
}

func (c *Config) rulesConfig() rules.Config {
	base := c.Rules.BaseURL
	if c.Rules.Offline {
		base = ""
	}
	return rules.Config{BaseURL: base, CachePath: c.DBPath, CacheTTL: c.Rules.CacheTTL}
}

func (c *Config) sourceConfig() pagesource.Config {
	return pagesource.Config{
		Headless:     c.Fetch.Headless,
		BrowserURL:   c.Fetch.BrowserURL,
		Timeout:      c.Fetch.Timeout,
		MaxBody:      c.Fetch.MaxBody,
		AllowPrivate: c.Fetch.AllowPrivate,
		UserAgent:    c.Fetch.UserAgent,
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("retrofit: config %s: %w", path, err)
	}
	return cfg, nil
}
