package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Status     StatusConfig     `mapstructure:"status"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// GuildIDs limits monitoring to these group chats; empty means all.
	GuildIDs []string `mapstructure:"guild_ids"`
	Workers  int      `mapstructure:"workers"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type ClassifierConfig struct {
	Provider       string        `mapstructure:"provider"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	RequestRetries int           `mapstructure:"request_retries"`
	OutputRetries  int           `mapstructure:"output_retries"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	ContextTools   bool          `mapstructure:"context_tools"`
}

type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type IntakeConfig struct {
	SeenCacheSize int `mapstructure:"seen_cache_size"`
}

type TrackerConfig struct {
	Kind         string        `mapstructure:"kind"`
	Categories   []string      `mapstructure:"categories"`
	DedupWindow  int           `mapstructure:"dedup_window"`
	CreateLabels bool          `mapstructure:"create_labels"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	GitHub       GitHubConfig  `mapstructure:"github"`
	Linear       LinearConfig  `mapstructure:"linear"`
}

type GitHubConfig struct {
	Token string `mapstructure:"token"`
	Repo  string `mapstructure:"repo"`
}

type LinearConfig struct {
	APIKey string `mapstructure:"api_key"`
	TeamID string `mapstructure:"team_id"`
}

type NotifierConfig struct {
	Kind        string `mapstructure:"kind"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
	Sound       string `mapstructure:"sound"`
}

type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// TelemetryConfig controls OTLP tracing of model calls.
type TelemetryConfig struct {
	OTelEnabled  bool   `mapstructure:"otel_enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	// TraceHTTP adds a span per raw HTTP request to the model endpoint.
	TraceHTTP bool `mapstructure:"trace_http"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.workers", 8)
	v.SetDefault("telegram.guild_ids", []string{})

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "support_monitor")
	v.SetDefault("database.use_in_memory", true)

	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.min_confidence", 0.3)
	v.SetDefault("classifier.request_retries", 2)
	v.SetDefault("classifier.output_retries", 3)
	v.SetDefault("classifier.attempt_timeout", "60s")
	v.SetDefault("classifier.context_tools", true)

	v.SetDefault("openai.base_url", "http://localhost:11434/v1")
	v.SetDefault("openai.api_key", "ollama")
	v.SetDefault("openai.model", "qwen3:30b")
	v.SetDefault("openai.max_tokens", 512)
	v.SetDefault("openai.temperature", 0.0)

	v.SetDefault("intake.seen_cache_size", 10000)

	v.SetDefault("tracker.kind", "none")
	v.SetDefault("tracker.categories", []string{})
	v.SetDefault("tracker.dedup_window", 50)
	v.SetDefault("tracker.create_labels", true)
	v.SetDefault("tracker.call_timeout", "30s")
	v.SetDefault("tracker.github.token", "")
	v.SetDefault("tracker.github.repo", "")
	v.SetDefault("tracker.linear.api_key", "")
	v.SetDefault("tracker.linear.team_id", "")

	v.SetDefault("notifier.kind", "desktop")
	v.SetDefault("notifier.admin_chat_id", 0)
	v.SetDefault("notifier.sound", "default")

	v.SetDefault("status.addr", ":8080")

	v.SetDefault("telemetry.otel_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "support-monitor")
	v.SetDefault("telemetry.trace_http", false)

	v.SetDefault("logging.level", "info")
}

// LoadConfig loads and validates the bot configuration.
func LoadConfig(path string) (*Config, error) {
	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load reads path (when it exists), .env and the environment without
// validating. Nested keys map to env vars by upper-casing and replacing
// dots with underscores, e.g. TRACKER_GITHUB_REPO.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Legacy flat environment variables.
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if token := v.GetString("GITHUB_TOKEN"); token != "" {
		config.Tracker.GitHub.Token = token
	}
	if repo := v.GetString("GITHUB_REPO"); repo != "" {
		config.Tracker.GitHub.Repo = repo
	}
	if endpoint := v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		config.Telemetry.OTLPEndpoint = endpoint
	}
	// Env values arrive as a single comma separated string.
	config.Telegram.GuildIDs = splitList(config.Telegram.GuildIDs)
	config.Tracker.Categories = splitList(config.Tracker.Categories)
	return &config, nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var (
	trackerKinds    = []string{"none", "github", "linear"}
	notifierKinds   = []string{"none", "desktop", "telegram"}
	providers       = []string{"openai", "keyword"}
	knownCategories = []string{"support_request", "complaint", "bug_report", "general_chat", "other"}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks ranges and enum values. Tracker credentials are checked
// by the tracker factory for the selected tracker only.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Telegram.Workers <= 0 {
		errs = append(errs, fmt.Errorf("telegram.workers must be positive, got %d", c.Telegram.Workers))
	}
	if !oneOf(c.Classifier.Provider, providers) {
		errs = append(errs, fmt.Errorf("classifier.provider must be one of %v, got %q", providers, c.Classifier.Provider))
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("classifier.min_confidence must be in [0, 1], got %v", c.Classifier.MinConfidence))
	}
	if c.Classifier.RequestRetries < 0 || c.Classifier.OutputRetries < 0 {
		errs = append(errs, errors.New("classifier retry budgets must not be negative"))
	}
	if c.Classifier.Provider == "openai" && c.OpenAI.Model == "" {
		errs = append(errs, errors.New("openai.model is required"))
	}
	if c.Intake.SeenCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("intake.seen_cache_size must be positive, got %d", c.Intake.SeenCacheSize))
	}
	if !oneOf(c.Tracker.Kind, trackerKinds) {
		errs = append(errs, fmt.Errorf("tracker.kind must be one of %v, got %q", trackerKinds, c.Tracker.Kind))
	}
	for _, category := range c.Tracker.Categories {
		if !oneOf(category, knownCategories) {
			errs = append(errs, fmt.Errorf("tracker.categories: unknown category %q", category))
		}
	}
	if c.Tracker.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("tracker.dedup_window must be positive, got %d", c.Tracker.DedupWindow))
	}
	if !oneOf(c.Notifier.Kind, notifierKinds) {
		errs = append(errs, fmt.Errorf("notifier.kind must be one of %v, got %q", notifierKinds, c.Notifier.Kind))
	}
	if c.Telemetry.OTelEnabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("telemetry.otlp_endpoint is required when tracing is enabled"))
	}
	if c.Notifier.Kind == "telegram" && c.Notifier.AdminChatID == 0 {
		errs = append(errs, errors.New("notifier.admin_chat_id is required for the telegram notifier"))
	}
	return errors.Join(errs...)
}
