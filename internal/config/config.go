// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (PILOT_LLM_MODEL, ...).
const EnvPrefix = "PILOT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	Transport() TransportConfig
	Store() StoreConfig

	// CLI flag overrides.
	SetBrowserHeadless(bool)
	SetBrowserEngine(BrowserEngine)
	SetTransportMode(TransportMode)
	SetTransportURL(string)
	SetLLMProvider(LLMProvider)
	SetStoreEnabled(bool)
}

// Config holds the entire application configuration. Fields are private to
// enforce access through the Interface's getter methods.
type Config struct {
	logger    LoggerConfig
	llm       LLMConfig
	browser   BrowserConfig
	agent     AgentConfig
	transport TransportConfig
	store     StoreConfig
}

// fileConfig is the shape viper decodes into.
type fileConfig struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Transport TransportConfig `mapstructure:"transport"`
	Store     StoreConfig     `mapstructure:"store"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.logger }
func (c *Config) LLM() LLMConfig             { return c.llm }
func (c *Config) Browser() BrowserConfig     { return c.browser }
func (c *Config) Agent() AgentConfig         { return c.agent }
func (c *Config) Transport() TransportConfig { return c.transport }
func (c *Config) Store() StoreConfig         { return c.store }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)        { c.browser.Headless = b }
func (c *Config) SetBrowserEngine(e BrowserEngine) { c.browser.Engine = e }
func (c *Config) SetTransportMode(m TransportMode) { c.transport.Mode = m }
func (c *Config) SetTransportURL(u string)         { c.transport.URL = u }
func (c *Config) SetLLMProvider(p LLMProvider)     { c.llm.Provider = p }
func (c *Config) SetStoreEnabled(b bool)           { c.store.Enabled = b }

// LoggerConfig holds the zap/lumberjack settings.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider selects the model backend.
type LLMProvider string

const (
	// ProviderGemini calls the Gemini generateContent REST endpoint directly.
	ProviderGemini LLMProvider = "gemini"
	// ProviderGenAI uses the google.golang.org/genai SDK.
	ProviderGenAI LLMProvider = "genai"
	// ProviderNone disables planning; every command yields an empty plan.
	ProviderNone LLMProvider = "none"
)

// LLMConfig defines the planner's language model.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// BrowserEngine selects what the page side drives.
type BrowserEngine string

const (
	// EngineChrome drives Chrome over the DevTools protocol.
	EngineChrome BrowserEngine = "chrome"
	// EngineStatic loads pages over HTTP into an in-memory DOM. No JavaScript runs.
	EngineStatic BrowserEngine = "static"
)

// BrowserConfig holds page-side settings.
type BrowserConfig struct {
	Engine            BrowserEngine `mapstructure:"engine" yaml:"engine"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	StartURL          string        `mapstructure:"start_url" yaml:"start_url"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// AgentConfig tunes planning and execution.
type AgentConfig struct {
	DefaultWaitMs   int `mapstructure:"default_wait_ms" yaml:"default_wait_ms"`
	StarSettleMs    int `mapstructure:"star_settle_ms" yaml:"star_settle_ms"`
	RationaleMaxLen int `mapstructure:"rationale_max_len" yaml:"rationale_max_len"`
}

// DefaultWait is DefaultWaitMs as a duration.
func (a AgentConfig) DefaultWait() time.Duration {
	return time.Duration(a.DefaultWaitMs) * time.Millisecond
}

// StarSettle is StarSettleMs as a duration.
func (a AgentConfig) StarSettle() time.Duration {
	return time.Duration(a.StarSettleMs) * time.Millisecond
}

// TransportMode selects how the controller reaches the page side.
type TransportMode string

const (
	TransportDirect    TransportMode = "direct"
	TransportWebSocket TransportMode = "websocket"
)

// TransportConfig holds the controller/page boundary settings.
type TransportConfig struct {
	Mode TransportMode `mapstructure:"mode" yaml:"mode"`
	// ListenAddr is where `page-agent` serves WebSocket connections.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	// URL is the page agent a websocket-mode controller dials.
	URL            string        `mapstructure:"url" yaml:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// StoreConfig holds the run history database settings.
type StoreConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return fc.toConfig()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.requests_per_minute", 0)

	// -- Browser --
	v.SetDefault("browser.engine", string(EngineChrome))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.start_url", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.user_agent", "pilot/1.0")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "20s")

	// -- Agent --
	v.SetDefault("agent.default_wait_ms", 1000)
	v.SetDefault("agent.star_settle_ms", 2000)
	v.SetDefault("agent.rationale_max_len", 4000)

	// -- Transport --
	v.SetDefault("transport.mode", string(TransportDirect))
	v.SetDefault("transport.listen_addr", "127.0.0.1:8765")
	v.SetDefault("transport.url", "ws://127.0.0.1:8765/ws")
	v.SetDefault("transport.request_timeout", "2m")

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.database_url", "")
}

// BindEnv wires PILOT_* environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets get short, conventional names.
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_GEMINI_API_KEY", EnvPrefix+"_LLM_API_KEY")
	_ = v.BindEnv("store.database_url", EnvPrefix+"_DATABASE_URL", EnvPrefix+"_STORE_DATABASE_URL")
}

// NewConfigFromViper decodes and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg := fc.toConfig()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (fc fileConfig) toConfig() *Config {
	return &Config{
		logger:    fc.Logger,
		llm:       fc.LLM,
		browser:   fc.Browser,
		agent:     fc.Agent,
		transport: fc.Transport,
		store:     fc.Store,
	}
}

// expandPaths resolves "~" in file system paths.
func (c *Config) expandPaths() error {
	if c.logger.LogFile != "" {
		p, err := homedir.Expand(c.logger.LogFile)
		if err != nil {
			return fmt.Errorf("failed to expand logger.log_file: %w", err)
		}
		c.logger.LogFile = p
	}
	if c.browser.ExecPath != "" {
		p, err := homedir.Expand(c.browser.ExecPath)
		if err != nil {
			return fmt.Errorf("failed to expand browser.exec_path: %w", err)
		}
		c.browser.ExecPath = p
	}
	return nil
}

// Validate checks the settings the application cannot run without.
func (c *Config) Validate() error {
	switch c.llm.Provider {
	case ProviderGemini, ProviderGenAI, ProviderNone:
	default:
		return fmt.Errorf("llm.provider must be one of gemini, genai, none (got %q)", c.llm.Provider)
	}
	if c.llm.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if c.llm.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}

	switch c.browser.Engine {
	case EngineChrome, EngineStatic:
	default:
		return fmt.Errorf("browser.engine must be chrome or static (got %q)", c.browser.Engine)
	}

	if c.agent.DefaultWaitMs < 0 {
		return fmt.Errorf("agent.default_wait_ms must not be negative")
	}
	if c.agent.StarSettleMs < 0 {
		return fmt.Errorf("agent.star_settle_ms must not be negative")
	}
	if c.agent.RationaleMaxLen < 0 {
		return fmt.Errorf("agent.rationale_max_len must not be negative")
	}

	switch c.transport.Mode {
	case TransportDirect:
	case TransportWebSocket:
		if c.transport.URL == "" && c.transport.ListenAddr == "" {
			return fmt.Errorf("transport.url or transport.listen_addr is required in websocket mode")
		}
	default:
		return fmt.Errorf("transport.mode must be direct or websocket (got %q)", c.transport.Mode)
	}

	if c.store.Enabled && c.store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url is required when store.enabled is true")
	}
	return nil
}
