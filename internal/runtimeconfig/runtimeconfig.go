// Package runtimeconfig holds the server harness's own configuration —
// host, port, proxy API key, manifest path, and resolver defaults — as
// distinct from the library's declarative provider/model manifest
// (internal/manifest), which describes providers and models rather than
// how the harness itself is deployed.
package runtimeconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 6970
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultHost           = "127.0.0.1"
	DefaultHTTPTimeoutSec = 120
)

// EnvAPIKey lets the harness run without a config file present, mirroring
// the teacher's CCO_API_KEY escape hatch.
const EnvAPIKey = "LLMBRIDGE_API_KEY"

// Config is the server harness's own configuration document. It never
// carries provider credentials or model lists — those live in the
// manifest pointed to by ManifestPath.
type Config struct {
	Host         string            `json:"HOST,omitempty" yaml:"host,omitempty"`
	Port         int               `json:"PORT,omitempty" yaml:"port,omitempty"`
	APIKey       string            `json:"APIKEY,omitempty" yaml:"api_key,omitempty"`
	ManifestPath string            `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	HTTPTimeoutS int               `json:"http_timeout_seconds,omitempty" yaml:"http_timeout_seconds,omitempty"`
	Provider     string            `json:"provider,omitempty" yaml:"provider,omitempty"`
	DefaultModel string            `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Fallbacks    map[string]string `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// Manager loads and caches a Config the way the teacher's config.Manager
// does: YAML preferred, JSON fallback, atomic.Value-cached, defaults
// applied after parse.
type Manager struct {
	baseDir     string
	jsonPath    string
	yamlPath    string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		jsonPath: filepath.Join(baseDir, DefaultConfigFilename),
		yamlPath: filepath.Join(baseDir, DefaultYAMLFilename),
	}
}

func (m *Manager) createMinimalConfig() Config {
	return Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		HTTPTimeoutS: DefaultHTTPTimeoutSec,
		ManifestPath: filepath.Join(m.baseDir, "manifest.yaml"),
	}
}

func (m *Manager) Load() (*Config, error) {
	var cfg Config
	var err error

	apiKey := os.Getenv(EnvAPIKey)

	switch {
	case fileExists(m.yamlPath):
		cfg, err = m.loadYAML()
		if err != nil {
			return nil, fmt.Errorf("load YAML config: %w", err)
		}
	case fileExists(m.jsonPath):
		cfg, err = m.loadJSON()
		if err != nil {
			return nil, fmt.Errorf("load JSON config: %w", err)
		}
	case apiKey != "":
		cfg = m.createMinimalConfig()
	default:
		return nil, fmt.Errorf("no configuration file found (looked for %s or %s) and %s not set", m.yamlPath, m.jsonPath, EnvAPIKey)
	}

	m.applyDefaults(&cfg)

	m.configValue.Store(&cfg)
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (m *Manager) loadYAML() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.yamlPath)
	if err != nil {
		return cfg, fmt.Errorf("read YAML config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal YAML config: %w", err)
	}

	return cfg, nil
}

func (m *Manager) loadJSON() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.jsonPath)
	if err != nil {
		return cfg, fmt.Errorf("read JSON config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal JSON config: %w", err)
	}

	return cfg, nil
}

func (m *Manager) applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPTimeoutS == 0 {
		cfg.HTTPTimeoutS = DefaultHTTPTimeoutSec
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = filepath.Join(m.baseDir, "manifest.yaml")
	}
	if apiKey := os.Getenv(EnvAPIKey); apiKey != "" && cfg.APIKey == "" {
		cfg.APIKey = apiKey
	}
}

func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		return &Config{
			Host:         DefaultHost,
			Port:         DefaultPort,
			HTTPTimeoutS: DefaultHTTPTimeoutSec,
		}
	}
	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	return m.SaveAsYAML(cfg)
}

func (m *Manager) SaveAsYAML(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}

	if err := os.WriteFile(m.yamlPath, data, 0600); err != nil {
		return fmt.Errorf("write YAML config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) SaveAsJSON(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON config: %w", err)
	}

	if err := os.WriteFile(m.jsonPath, data, 0600); err != nil {
		return fmt.Errorf("write JSON config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	if fileExists(m.yamlPath) {
		return m.yamlPath
	}
	return m.jsonPath
}

func (m *Manager) GetYAMLPath() string { return m.yamlPath }
func (m *Manager) GetJSONPath() string { return m.jsonPath }

func (m *Manager) Exists() bool {
	return fileExists(m.yamlPath) || fileExists(m.jsonPath)
}

func (m *Manager) HasYAML() bool { return fileExists(m.yamlPath) }
func (m *Manager) HasJSON() bool { return fileExists(m.jsonPath) }

// CreateExampleYAML writes an example harness configuration pointing at
// an adjacent manifest.yaml, mirroring the teacher's CreateExampleYAML.
func (m *Manager) CreateExampleYAML() error {
	cfg := &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		APIKey:       "your-proxy-api-key-here",
		ManifestPath: filepath.Join(m.baseDir, "manifest.yaml"),
		HTTPTimeoutS: DefaultHTTPTimeoutSec,
		Provider:     "openai",
		DefaultModel: "gpt-4o",
	}

	m.applyDefaults(cfg)

	return m.SaveAsYAML(cfg)
}
