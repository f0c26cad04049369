// Package config models pentagon.yml and builds the pipeline's collaborators from it.
package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nexxia-ai/pentagon"
	"github.com/nexxia-ai/pentagon/ai"
	"github.com/nexxia-ai/pentagon/alert"
	"github.com/nexxia-ai/pentagon/guard"
	"github.com/nexxia-ai/pentagon/knowledge"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Model struct {
		Provider    string        `yaml:"provider"`
		Name        string        `yaml:"name"`
		BaseURL     string        `yaml:"base_url"`
		APIKeyEnv   string        `yaml:"api_key_env"`
		Temperature *float64      `yaml:"temperature"`
		MaxTokens   int           `yaml:"max_tokens"`
		Attempts    int           `yaml:"attempts"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"model"`
	Personas map[string]string `yaml:"personas"`
	Guard    struct {
		Phrases []string `yaml:"phrases"`
		Lockout struct {
			Enabled   bool          `yaml:"enabled"`
			Threshold int           `yaml:"threshold"`
			Window    time.Duration `yaml:"window"`
			Cooldown  time.Duration `yaml:"cooldown"`
		} `yaml:"lockout"`
	} `yaml:"guard"`
	Alert struct {
		Webhook string        `yaml:"webhook"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"alert"`
	Knowledge struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"knowledge"`
	Trace struct {
		Directory string `yaml:"directory"`
		MaxFiles  int    `yaml:"max_files"`
	} `yaml:"trace"`
	Export struct {
		Directory string `yaml:"directory"`
	} `yaml:"export"`
	Server struct {
		Addr           string   `yaml:"addr"`
		RecentRuns     int      `yaml:"recent_runs"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("config.model.provider is required")
	}
	if c.Model.Attempts < 0 {
		return fmt.Errorf("config.model.attempts must not be negative")
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("config.model.timeout must not be negative")
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("config.model.temperature must be between 0 and 2")
	}
	stages := make(map[string]bool)
	for _, s := range pentagon.DefaultStages() {
		stages[string(s.ID)] = true
	}
	for id, p := range c.Personas {
		if !stages[id] {
			return fmt.Errorf("config.personas has unknown stage %s", id)
		}
		if p == "" {
			return fmt.Errorf("persona for stage %s is empty", id)
		}
	}
	for i, p := range c.Guard.Phrases {
		if p == "" {
			return fmt.Errorf("config.guard.phrases[%d] is empty", i)
		}
	}
	if l := c.Guard.Lockout; l.Enabled && l.Threshold < 1 {
		return fmt.Errorf("config.guard.lockout.threshold must be at least 1")
	}
	switch c.Knowledge.Backend {
	case "", knowledge.BackendJSON, knowledge.BackendSQLite:
	default:
		return fmt.Errorf("config.knowledge.backend must be %s or %s", knowledge.BackendJSON, knowledge.BackendSQLite)
	}
	for _, ip := range c.Server.TrustedProxies {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("config.server.trusted_proxies has invalid ip %q", ip)
		}
	}
	if c.Knowledge.Path == "" {
		return fmt.Errorf("config.knowledge.path is required")
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset keys keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Load reads path when set and the defaults otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return FromFile(path)
}

// NewModel resolves the configured provider. The API key is read from
// Model.APIKeyEnv when set, otherwise the driver's own variable is used.
func (c *Config) NewModel() (*ai.Model, error) {
	apiKey := ""
	if c.Model.APIKeyEnv != "" {
		apiKey = os.Getenv(c.Model.APIKeyEnv)
	}
	m, err := ai.New(c.Model.Provider, c.Model.Name, apiKey, c.Model.BaseURL)
	if err != nil {
		return nil, err
	}
	if c.Model.Temperature != nil {
		m = m.WithTemperature(*c.Model.Temperature)
	}
	if c.Model.MaxTokens > 0 {
		m = m.WithMaxTokens(c.Model.MaxTokens)
	}
	if c.Model.Attempts > 0 {
		m = m.WithMaxAttempts(c.Model.Attempts)
	}
	if c.Model.Timeout > 0 {
		m = m.WithTimeout(c.Model.Timeout)
	}
	return m, nil
}

// StagePersonas returns the configured persona overrides.
func (c *Config) StagePersonas() pentagon.Personas {
	p := make(pentagon.Personas, len(c.Personas))
	for id, text := range c.Personas {
		p[pentagon.StageID(id)] = text
	}
	return p
}

func (c *Config) NewGuard() *guard.Guard {
	if len(c.Guard.Phrases) == 0 {
		return guard.Default()
	}
	return guard.New(c.Guard.Phrases...)
}

// NewLockout returns nil when lockout is disabled.
func (c *Config) NewLockout() *guard.Lockout {
	l := c.Guard.Lockout
	if !l.Enabled {
		return nil
	}
	return guard.NewLockout(guard.LockoutConfig{Threshold: l.Threshold, Window: l.Window, Cooldown: l.Cooldown})
}

// NewAlerter always logs and additionally posts to the webhook when one is set.
func (c *Config) NewAlerter() alert.Alerter {
	alerters := alert.Multi{alert.Log{}}
	if c.Alert.Webhook != "" {
		alerters = append(alerters, alert.NewWebhook(c.Alert.Webhook, c.Alert.Timeout))
	}
	return alerters
}

const defaultTemplate = `model:
  provider: deepseek
  name: deepseek-chat
  attempts: 3
  timeout: 2m

guard:
  lockout:
    enabled: true
    threshold: 3
    window: 10m
    cooldown: 15m

alert:
  timeout: 5s

knowledge:
  backend: json
  path: knowledge_base.json

trace:
  max_files: 10

export:
  directory: .

server:
  addr: ":8080"
  recent_runs: 256
`
