package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment modes
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config struct
type Config struct {
	SiteName  string          `mapstructure:"siteName"`
	Env       string          `mapstructure:"env"`
	Port      string          `mapstructure:"port"`
	DevPort   string          `mapstructure:"devPort"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Webhooks  WebhookConfig   `mapstructure:"webhooks"`
	Uploads   UploadConfig    `mapstructure:"uploads"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Rcon      RconConfig      `mapstructure:"rcon"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig selects the sqlite files for each environment
type DatabaseConfig struct {
	DevFile  string `mapstructure:"devFile"`
	ProdFile string `mapstructure:"prodFile"`
}

// SessionConfig configures the signed session cookie
type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookieName"`
	MaxAge     time.Duration `mapstructure:"maxAge"`
}

// DiscordConfig holds the OAuth2 application credentials
type DiscordConfig struct {
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
	CallbackURL  string `mapstructure:"callbackUrl"`
	APIBase      string `mapstructure:"apiBase"`
}

// AdminConfig is the single shared admin credential
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Reviewer string `mapstructure:"reviewer"`
}

// WebhookConfig holds the Discord webhook URLs, empty disables a channel
type WebhookConfig struct {
	Appeals string        `mapstructure:"appeals"`
	Reports string        `mapstructure:"reports"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UploadConfig controls where evidence files go
type UploadConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"maxBytes"`
}

// RateLimitConfig is a fixed window limit per client
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int64         `mapstructure:"max"`
}

// NotifyConfig tunes the in-process notification queue
type NotifyConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queueSize"`
	Attempts  int           `mapstructure:"attempts"`
	Backoff   time.Duration `mapstructure:"backoff"`
}

// RabbitMQConfig switches notifications to a broker when URL is set
type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// RconConfig enables pardoning players on approved appeals
type RconConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
}

// LogConfig configures logrus and file rotation
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
}

// environment variable names kept from earlier deployments
var envBindings = map[string][]string{
	"siteName":             {"SITE_NAME"},
	"env":                  {"APP_ENV", "NODE_ENV"},
	"port":                 {"PORT"},
	"devPort":              {"DEV_PORT"},
	"session.secret":       {"SESSION_SECRET"},
	"discord.clientId":     {"DISCORD_CLIENT_ID"},
	"discord.clientSecret": {"DISCORD_CLIENT_SECRET"},
	"discord.callbackUrl":  {"DISCORD_CALLBACK_URL"},
	"admin.username":       {"ADMIN_USERNAME"},
	"admin.password":       {"ADMIN_PASSWORD"},
	"admin.reviewer":       {"ADMIN_REVIEWER"},
	"webhooks.appeals":     {"DISCORD_WEBHOOK_URL"},
	"webhooks.reports":     {"REPORTS_WEBHOOK_URL"},
	"uploads.dir":          {"UPLOADS_DIR"},
	"rabbitmq.url":         {"RABBITMQ_URL"},
	"rcon.address":         {"RCON_ADDRESS"},
	"rcon.password":        {"RCON_PASSWORD"},
	"log.level":            {"LOG_LEVEL"},
	"log.file":             {"LOG_FILE"},
	"database.devFile":     {"DATABASE_DEV_FILE"},
	"database.prodFile":    {"DATABASE_FILE"},
	"rateLimit.max":        {"RATE_LIMIT_MAX"},
	"uploads.maxBytes":     {"UPLOAD_MAX_BYTES"},
	"notify.workers":       {"NOTIFY_WORKERS"},
	"webhooks.timeout":     {"WEBHOOK_TIMEOUT"},
	"session.cookieName":   {"SESSION_COOKIE"},
	"discord.apiBase":      {"DISCORD_API_BASE"},
	"rabbitmq.queue":       {"RABBITMQ_QUEUE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("siteName", "TDL SMP")
	v.SetDefault("env", EnvProduction)
	v.SetDefault("port", "3000")
	v.SetDefault("devPort", "3001")

	v.SetDefault("database.devFile", "tdl_smp_dev.db")
	v.SetDefault("database.prodFile", "tdl_smp.db")

	v.SetDefault("session.cookieName", "smp_session")
	v.SetDefault("session.maxAge", 24*time.Hour)

	v.SetDefault("discord.apiBase", "https://discord.com/api")
	v.SetDefault("admin.reviewer", "TDLAdmin")
	v.SetDefault("webhooks.timeout", 10*time.Second)

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.maxBytes", 50*1024*1024)

	v.SetDefault("rateLimit.window", 15*time.Minute)
	v.SetDefault("rateLimit.max", 100)

	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queueSize", 100)
	v.SetDefault("notify.attempts", 3)
	v.SetDefault("notify.backoff", 2*time.Second)

	v.SetDefault("rabbitmq.queue", "smp-notifications")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxSize", 10)
	v.SetDefault("log.maxBackups", 30)
	v.SetDefault("log.maxAge", 90)
}

// LoadConfig loads the optional config file, .env and the environment.
// An empty path skips the config file.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal in production
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	c.Env = normalizeEnv(c.Env)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", EnvDevelopment:
		return EnvDevelopment
	default:
		return EnvProduction
	}
}

// Validate is a pre running sanity configuration check
func (c *Config) Validate() error {
	if c.IsProduction() && c.Session.Secret == "" {
		return errors.New("Invalid configuration. session.secret (SESSION_SECRET) is required in production")
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("Invalid configuration. uploads.maxBytes must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("Invalid configuration. rateLimit.max and rateLimit.window must be positive")
	}
	if c.Session.MaxAge <= 0 {
		return errors.New("Invalid configuration. session.maxAge must be positive")
	}
	return nil
}

// IsDevelopment reports whether the development mode is selected
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction reports whether the production mode is selected
func (c *Config) IsProduction() bool {
	return !c.IsDevelopment()
}

// ListenAddr is the address the http server binds to in the current mode
func (c *Config) ListenAddr() string {
	if c.IsDevelopment() {
		return ":" + c.DevPort
	}
	return ":" + c.Port
}

// DatabaseFile is the sqlite file for the current mode
func (c *Config) DatabaseFile() string {
	if c.IsDevelopment() {
		return c.Database.DevFile
	}
	return c.Database.ProdFile
}

// CallbackURL falls back to the local callback in development mode
func (c *Config) CallbackURL() string {
	if c.Discord.CallbackURL != "" {
		return c.Discord.CallbackURL
	}
	if c.IsDevelopment() {
		return "http://localhost:" + c.DevPort + "/auth/discord/callback"
	}
	return "/auth/discord/callback"
}

// SessionSecret returns the signing key, using a throwaway key in development
func (c *Config) SessionSecret() []byte {
	if c.Session.Secret == "" {
		return []byte("dev-session-secret-" + fmt.Sprint(os.Getpid()))
	}
	return []byte(c.Session.Secret)
}
