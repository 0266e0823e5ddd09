package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type ConfigParam struct {
	ServerPort  string   `toml:"server_port" validate:"required,numeric"`
	HandleCORS  bool     `toml:"handle_cors"`
	CORSOrigins []string `toml:"cors_origins"`
	LogLevel    string   `toml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	LogPretty   bool     `toml:"log_pretty"`
	// PublicURL is the externally visible base URL, used to build presigned links.
	PublicURL string `toml:"public_url" validate:"omitempty,url"`

	DB        DBConfig        `toml:"db"`
	Sync      SyncConfig      `toml:"sync"`
	Storage   StorageConfig   `toml:"storage"`
	GitHub    GitHubConfig    `toml:"github"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type DBConfig struct {
	// Store selects the persistence backend: "postgres" or "memory".
	Store    string `toml:"store" validate:"oneof=postgres memory"`
	Host     string `toml:"host" validate:"required_if=Store postgres"`
	Port     int    `toml:"port" validate:"omitempty,min=1,max=65535"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname" validate:"required_if=Store postgres"`
	SSLMode  string `toml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	// Migrate applies the embedded schema at startup.
	Migrate          bool   `toml:"migrate"`
	StatementTimeout string `toml:"statement_timeout"`
	LockTimeout      string `toml:"lock_timeout"`
	// MaxOpenConns caps the pool size. Zero leaves it unlimited.
	MaxOpenConns int `toml:"max_open_conns" validate:"min=0"`
}

type SyncConfig struct {
	FileConcurrency int    `toml:"file_concurrency" validate:"min=1,max=256"`
	StaleAfter      string `toml:"stale_after"`
	JanitorInterval string `toml:"janitor_interval"`
	MaxFileSize     int64  `toml:"max_file_size" validate:"min=0"`
	MaxTotalSize    int64  `toml:"max_total_size" validate:"min=0"`
	MaxFiles        int    `toml:"max_files" validate:"min=0"`
}

type StorageConfig struct {
	Compress      bool   `toml:"compress"`
	PresignSecret string `toml:"presign_secret" validate:"omitempty,min=16"`
	PresignTTL    string `toml:"presign_ttl"`
}

type GitHubConfig struct {
	APIURL        string `toml:"api_url" validate:"omitempty,url"`
	Token         string `toml:"token"`
	Timeout       string `toml:"timeout"`
	RetryAttempts uint   `toml:"retry_attempts" validate:"max=10"`
	// WebhookSecret, when set, is required to match the X-Flowershow-Webhook-Token header.
	WebhookSecret string `toml:"webhook_secret"`
}

type RateLimitConfig struct {
	Enabled  bool   `toml:"enabled"`
	Requests int    `toml:"requests" validate:"min=0"`
	Window   string `toml:"window"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the active configuration. Tests use it to adjust settings.
func SetConfig(c *ConfigParam) {
	cfg = c
}

func defaultConfig() *ConfigParam {
	return &ConfigParam{
		ServerPort: "8197",
		HandleCORS: true,
		LogLevel:   "info",
		DB: DBConfig{
			Store:            "memory",
			Host:             "localhost",
			Port:             5432,
			User:             "flowershow",
			DBName:           "flowershow",
			SSLMode:          "disable",
			StatementTimeout: "30s",
			LockTimeout:      "5s",
			MaxOpenConns:     20,
		},
		Sync: SyncConfig{
			FileConcurrency: 8,
			StaleAfter:      "30m",
			JanitorInterval: "5m",
			MaxFileSize:     100 * 1024 * 1024,
			MaxTotalSize:    500 * 1024 * 1024,
			MaxFiles:        1000,
		},
		Storage: StorageConfig{
			Compress:      true,
			PresignSecret: "flowershow-dev-presign-secret",
			PresignTTL:    "1h",
		},
		GitHub: GitHubConfig{
			APIURL:        "https://api.github.com",
			Timeout:       "30s",
			RetryAttempts: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 10,
			Window:   "1h",
		},
	}
}

// LoadConfig loads filename over the defaults. An empty filename loads the defaults only.
func LoadConfig(filename string) error {
	cp := defaultConfig()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), cp); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	cfg = cp
	return nil
}

func (c *ConfigParam) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	for name, d := range map[string]string{
		"db.statement_timeout":  c.DB.StatementTimeout,
		"db.lock_timeout":       c.DB.LockTimeout,
		"sync.stale_after":      c.Sync.StaleAfter,
		"sync.janitor_interval": c.Sync.JanitorInterval,
		"storage.presign_ttl":   c.Storage.PresignTTL,
		"github.timeout":        c.GitHub.Timeout,
		"rate_limit.window":     c.RateLimit.Window,
	} {
		if d == "" {
			continue
		}
		if _, err := ParseDuration(d); err != nil {
			return fmt.Errorf("invalid config: %s: %v", name, err)
		}
	}
	return nil
}

// DSN returns the connection string for the pgx driver.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Duration parses s, returning def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ParseDuration accepts Go durations ("90s", "1h30m") and the day and year
// units "7d" and "1y".
func ParseDuration(input string) (time.Duration, error) {
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", input)
	}
	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	switch unit {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

func init() {
	if err := LoadConfig(""); err != nil {
		panic(err)
	}
}
