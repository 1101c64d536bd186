package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/user/leadscope/pkg/engine"
)

// KnownProviders are the narrative backends the factory can build.
var KnownProviders = []string{"gemini", "openai", "anthropic"}

type ProviderConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// SearchConfig configures the search / places provider used for discovery.
type SearchConfig struct {
	Provider      string `mapstructure:"provider" yaml:"provider"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Endpoint      string `mapstructure:"endpoint" yaml:"endpoint"`
	Results       int    `mapstructure:"results" yaml:"results"`
	CompetitorCap int    `mapstructure:"competitor_cap" yaml:"competitor_cap"`
}

// ScanConfig tunes the probes.
type ScanConfig struct {
	Workers           int           `mapstructure:"workers" yaml:"workers"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	HeaderTimeout     time.Duration `mapstructure:"header_timeout" yaml:"header_timeout"`
	TLSTimeout        time.Duration `mapstructure:"tls_timeout" yaml:"tls_timeout"`
	PortTimeout       time.Duration `mapstructure:"port_timeout" yaml:"port_timeout"`
	DNSTimeout        time.Duration `mapstructure:"dns_timeout" yaml:"dns_timeout"`
	ProbeDeadline     time.Duration `mapstructure:"probe_deadline" yaml:"probe_deadline"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	RequestsPerSecond int           `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// MarshalYAML writes durations in their string form ("5s") so saved files stay readable.
func (s ScanConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Workers           int    `yaml:"workers"`
		ProbeTimeout      string `yaml:"probe_timeout"`
		HeaderTimeout     string `yaml:"header_timeout"`
		TLSTimeout        string `yaml:"tls_timeout"`
		PortTimeout       string `yaml:"port_timeout"`
		DNSTimeout        string `yaml:"dns_timeout"`
		ProbeDeadline     string `yaml:"probe_deadline"`
		UserAgent         string `yaml:"user_agent"`
		RequestsPerSecond int    `yaml:"requests_per_second"`
	}{
		Workers:           s.Workers,
		ProbeTimeout:      s.ProbeTimeout.String(),
		HeaderTimeout:     s.HeaderTimeout.String(),
		TLSTimeout:        s.TLSTimeout.String(),
		PortTimeout:       s.PortTimeout.String(),
		DNSTimeout:        s.DNSTimeout.String(),
		ProbeDeadline:     s.ProbeDeadline.String(),
		UserAgent:         s.UserAgent,
		RequestsPerSecond: s.RequestsPerSecond,
	}, nil
}

// ReportConfig controls where rendered documents go.
type ReportConfig struct {
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint,omitempty"`
	S3AccessKey string `mapstructure:"s3_access_key" yaml:"s3_access_key,omitempty"`
	S3SecretKey string `mapstructure:"s3_secret_key" yaml:"s3_secret_key,omitempty"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl" yaml:"s3_use_ssl"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

func (s ServerConfig) MarshalYAML() (interface{}, error) {
	return struct {
		ListenAddr      string `yaml:"listen_addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	}{s.ListenAddr, s.ShutdownTimeout.String()}, nil
}

type Config struct {
	SelectedProvider string                    `mapstructure:"selected_provider" yaml:"selected_provider"`
	SelectedModel    string                    `mapstructure:"selected_model" yaml:"selected_model"`
	FallbackModels   []string                  `mapstructure:"fallback_models" yaml:"fallback_models,omitempty"`
	Providers        map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Search           SearchConfig              `mapstructure:"search" yaml:"search"`
	Scan             ScanConfig                `mapstructure:"scan" yaml:"scan"`
	Scoring          engine.Policy             `mapstructure:"scoring" yaml:"scoring"`
	Report           ReportConfig              `mapstructure:"report" yaml:"report"`
	Server           ServerConfig              `mapstructure:"server" yaml:"server"`

	path string
	// settings filled from the environment, with what the file held
	fromEnv map[string]envOverride
}

type envOverride struct {
	env, file string
}

// secretKeys are the settings that well-known environment variables can fill.
var secretKeys = []string{
	"providers.gemini.api_key",
	"providers.openai.api_key",
	"providers.anthropic.api_key",
	"search.api_key",
	"report.s3_access_key",
	"report.s3_secret_key",
}

// GetConfigPath returns ~/.leadscope/config.yaml, creating the directory.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".leadscope")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("selected_provider", "gemini")
	v.SetDefault("selected_model", "gemini-1.5-flash")
	v.SetDefault("fallback_models", []string{"gemini-1.5-pro"})

	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.endpoint", "https://serpapi.com/search.json")
	v.SetDefault("search.results", 10)
	v.SetDefault("search.competitor_cap", 4)

	v.SetDefault("scan.workers", engine.DefaultWorkers)
	v.SetDefault("scan.probe_timeout", "5s")
	v.SetDefault("scan.header_timeout", "3s")
	v.SetDefault("scan.tls_timeout", "3s")
	v.SetDefault("scan.port_timeout", "1s")
	v.SetDefault("scan.dns_timeout", "3s")
	v.SetDefault("scan.probe_deadline", "10s")
	v.SetDefault("scan.user_agent", "Mozilla/5.0 (compatible; leadscope/1.0)")
	v.SetDefault("scan.requests_per_second", 5)

	p := engine.DefaultPolicy()
	v.SetDefault("scoring.tls_invalid", p.TLSInvalid)
	v.SetDefault("scoring.missing_headers", p.MissingHeaders)
	v.SetDefault("scoring.missing_spf", p.MissingSPF)
	v.SetDefault("scoring.missing_dmarc", p.MissingDMARC)
	v.SetDefault("scoring.sensitive_port", p.SensitivePort)
	v.SetDefault("scoring.port_penalty_mode", string(p.PortMode))
	v.SetDefault("scoring.missing_description", p.MissingDescription)
	v.SetDefault("scoring.missing_h1", p.MissingH1)
	v.SetDefault("scoring.sensitive_ports", p.SensitivePorts)

	v.SetDefault("report.output_dir", ".")
	v.SetDefault("report.prefix", "reports/")
	v.SetDefault("report.s3_use_ssl", true)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LEADSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known vendor variables
	_ = v.BindEnv("providers.gemini.api_key", "LEADSCOPE_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "LEADSCOPE_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.anthropic.api_key", "LEADSCOPE_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("search.api_key", "LEADSCOPE_SEARCH_API_KEY", "SERPAPI_API_KEY")
	_ = v.BindEnv("report.s3_access_key", "LEADSCOPE_REPORT_S3_ACCESS_KEY", "MINIO_ACCESS_KEY")
	_ = v.BindEnv("report.s3_secret_key", "LEADSCOPE_REPORT_S3_SECRET_KEY", "MINIO_SECRET_KEY")
}

// Load reads configuration from path (or ~/.leadscope/config.yaml when empty), applies
// defaults and environment overrides, and validates the result. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	bindEnv(v)

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	fileOnly := viper.New()
	fileOnly.SetConfigType("yaml")
	fileOnly.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := fileOnly.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.path = path
	cfg.fromEnv = make(map[string]envOverride)
	for _, key := range secretKeys {
		if val, file := v.GetString(key), fileOnly.GetString(key); val != file {
			cfg.fromEnv[key] = envOverride{env: val, file: file}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads the default config file.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Path is the file this config was loaded from and will be saved to.
func (c *Config) Path() string {
	return c.path
}

// SaveConfig writes cfg back to the file it was loaded from. Secrets that only came
// from the environment are not written; a value set since loading is.
func SaveConfig(cfg *Config) error {
	path := cfg.path
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	out := *cfg
	out.Providers = make(map[string]ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		out.Providers[name] = p
	}
	for key, o := range cfg.fromEnv {
		if out.secret(key) == o.env {
			out.setSecret(key, o.file)
		}
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

// Validate rejects settings the scan cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.Workers <= 0 {
		errs = append(errs, fmt.Errorf("scan.workers must be positive, got %d", c.Scan.Workers))
	}
	timeouts := map[string]time.Duration{
		"scan.probe_timeout":  c.Scan.ProbeTimeout,
		"scan.header_timeout": c.Scan.HeaderTimeout,
		"scan.tls_timeout":    c.Scan.TLSTimeout,
		"scan.port_timeout":   c.Scan.PortTimeout,
		"scan.dns_timeout":    c.Scan.DNSTimeout,
		"scan.probe_deadline": c.Scan.ProbeDeadline,
	}
	names := make([]string, 0, len(timeouts))
	for name := range timeouts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if timeouts[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, timeouts[name]))
		}
	}
	if c.Search.CompetitorCap <= 0 {
		errs = append(errs, fmt.Errorf("search.competitor_cap must be positive, got %d", c.Search.CompetitorCap))
	}
	if c.Search.Results <= 0 {
		errs = append(errs, fmt.Errorf("search.results must be positive, got %d", c.Search.Results))
	}
	if c.Scan.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("scan.requests_per_second must not be negative, got %d", c.Scan.RequestsPerSecond))
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SelectedProvider != "" && !isKnownProvider(c.SelectedProvider) {
		errs = append(errs, fmt.Errorf("selected_provider %q is not one of %s", c.SelectedProvider, strings.Join(KnownProviders, ", ")))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) SetAPIKey(provider, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

// ConfiguredProviders lists known providers that have an API key, in KnownProviders order.
func (c *Config) ConfiguredProviders() []string {
	var out []string
	for _, name := range KnownProviders {
		if c.GetAPIKey(name) != "" {
			out = append(out, name)
		}
	}
	return out
}

func isKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

func (c *Config) secret(key string) string {
	switch key {
	case "search.api_key":
		return c.Search.APIKey
	case "report.s3_access_key":
		return c.Report.S3AccessKey
	case "report.s3_secret_key":
		return c.Report.S3SecretKey
	}
	return c.GetAPIKey(providerOf(key))
}

func (c *Config) setSecret(key, val string) {
	switch key {
	case "search.api_key":
		c.Search.APIKey = val
	case "report.s3_access_key":
		c.Report.S3AccessKey = val
	case "report.s3_secret_key":
		c.Report.S3SecretKey = val
	default:
		if val == "" {
			delete(c.Providers, providerOf(key))
			return
		}
		c.SetAPIKey(providerOf(key), val)
	}
}

// providerOf extracts "gemini" from "providers.gemini.api_key".
func providerOf(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, "providers."), ".api_key")
}
