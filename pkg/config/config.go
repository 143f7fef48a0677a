package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. WEBPILOT_BROWSER_HEADLESS.
const EnvPrefix = "WEBPILOT"

type Config struct {
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Timing    TimingConfig    `mapstructure:"timing" yaml:"timing"`
	Planner   PlannerConfig   `mapstructure:"planner" yaml:"planner"`
	Sites     []SiteConfig    `mapstructure:"sites" yaml:"sites"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Telegram  TelegramConfig  `mapstructure:"telegram" yaml:"telegram"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RecordVideo       bool          `mapstructure:"record_video" yaml:"record_video"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// DefaultURL is opened when a navigation subtask names no target.
	DefaultURL string `mapstructure:"default_url" yaml:"default_url"`
	// FallbackSite is the site profile the challenge handler opens in a new tab.
	FallbackSite string `mapstructure:"fallback_site" yaml:"fallback_site"`
	// ChallengeAttempts is capped at 2 regardless of configuration.
	ChallengeAttempts int `mapstructure:"challenge_attempts" yaml:"challenge_attempts"`
}

type TimingConfig struct {
	StepDelay         time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	PerKey            time.Duration `mapstructure:"per_key" yaml:"per_key"`
	FocusDelay        time.Duration `mapstructure:"focus_delay" yaml:"focus_delay"`
	ResultsWait       time.Duration `mapstructure:"results_wait" yaml:"results_wait"`
	SubmitWait        time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"`
	DirectResultsWait time.Duration `mapstructure:"direct_results_wait" yaml:"direct_results_wait"`
	SubmitSettle      time.Duration `mapstructure:"submit_settle" yaml:"submit_settle"`
	AfterSubmit       time.Duration `mapstructure:"after_submit" yaml:"after_submit"`
	ClickSettle       time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	ScrollPause       time.Duration `mapstructure:"scroll_pause" yaml:"scroll_pause"`
	RemediationWait   time.Duration `mapstructure:"remediation_wait" yaml:"remediation_wait"`
}

type PlannerConfig struct {
	// Provider is "ollama" or "openai" (any OpenAI-compatible endpoint).
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	PromptsDir  string  `mapstructure:"prompts_dir" yaml:"prompts_dir"`
}

// SiteConfig adds or overrides a site profile.
type SiteConfig struct {
	Name            string   `mapstructure:"name" yaml:"name"`
	Domain          string   `mapstructure:"domain" yaml:"domain"`
	Keywords        []string `mapstructure:"keywords" yaml:"keywords"`
	Home            string   `mapstructure:"home" yaml:"home"`
	SearchURL       string   `mapstructure:"search_url" yaml:"search_url"`
	ResultsSelector string   `mapstructure:"results_selector" yaml:"results_selector"`
	InputSelectors  []string `mapstructure:"input_selectors" yaml:"input_selectors"`
	DirectSearch    bool     `mapstructure:"direct_search" yaml:"direct_search"`
}

type PolicyConfig struct {
	DenyCapabilities []string `mapstructure:"deny_capabilities" yaml:"deny_capabilities"`
	DenyPatterns     []string `mapstructure:"deny_patterns" yaml:"deny_patterns"`
	ConfirmPatterns  []string `mapstructure:"confirm_patterns" yaml:"confirm_patterns"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Token   string `mapstructure:"token" yaml:"token"`
	ChatID  int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.record_video", false)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.navigation_timeout", "15s")
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.default_url", "https://yandex.ru")
	v.SetDefault("browser.fallback_site", "yandex")
	v.SetDefault("browser.challenge_attempts", 2)

	// -- Timing --
	v.SetDefault("timing.step_delay", "1s")
	v.SetDefault("timing.per_key", "100ms")
	v.SetDefault("timing.focus_delay", "300ms")
	v.SetDefault("timing.results_wait", "5s")
	v.SetDefault("timing.submit_wait", "4s")
	v.SetDefault("timing.direct_results_wait", "6s")
	v.SetDefault("timing.submit_settle", "2s")
	v.SetDefault("timing.after_submit", "1s")
	v.SetDefault("timing.click_settle", "2s")
	v.SetDefault("timing.scroll_pause", "1s")
	v.SetDefault("timing.remediation_wait", "2s")

	// -- Planner --
	v.SetDefault("planner.provider", "ollama")
	v.SetDefault("planner.model", "llama3.2")
	v.SetDefault("planner.base_url", "")
	v.SetDefault("planner.temperature", 0.1)
	v.SetDefault("planner.max_tokens", 1000)
	v.SetDefault("planner.prompts_dir", "prompts")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	// -- Store --
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "webpilot.db")

	// -- Telegram --
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.chat_id", 0)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", ".")
}

// Default returns the configuration with every default applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// New returns a viper instance with defaults and environment overrides wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or webpilot.yaml from the working directory when path is
// empty. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("webpilot")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewFromViper(v)
}

// NewFromViper decodes and validates the configuration held by v.
func NewFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("planner.api_key", EnvPrefix+"_PLANNER_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("telegram.token", EnvPrefix+"_TELEGRAM_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Planner.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("planner.provider must be ollama or openai, got %q", c.Planner.Provider)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	for i, s := range c.Sites {
		if s.Name == "" {
			return fmt.Errorf("sites[%d].name is required", i)
		}
	}
	return nil
}

// Dump writes the configuration as YAML. Secrets are masked.
func (c *Config) Dump(w io.Writer) error {
	masked := *c
	if masked.Planner.APIKey != "" {
		masked.Planner.APIKey = "***"
	}
	if masked.Telegram.Token != "" {
		masked.Telegram.Token = "***"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
