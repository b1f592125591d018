package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr string

	DBDriver string // sqlite|postgres
	DBDSN    string

	AuthSecret string
	TokenTTL   time.Duration
	// RoleFromDB re-reads the caller's role from the users table on every request.
	RoleFromDB bool

	CORSOrigins []string

	MaxQuestions int

	LogLevel  string // debug|info|warn|error
	LogFormat string // text|json
}

// FileConfig mirrors Config in the TOML file. Pointers distinguish unset keys.
type FileConfig struct {
	Server struct {
		Addr        *string  `toml:"addr"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"server"`
	Database struct {
		Driver *string `toml:"driver"`
		DSN    *string `toml:"dsn"`
	} `toml:"database"`
	Auth struct {
		Secret     *string `toml:"secret"`
		TokenTTL   *string `toml:"token_ttl"`
		RoleFromDB *bool   `toml:"role_from_db"`
	} `toml:"auth"`
	Exam struct {
		MaxQuestions *int `toml:"max_questions"`
	} `toml:"exam"`
	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:     ":8080",
		DBDriver:     "sqlite",
		AuthSecret:   "supersecret-dev-key",
		TokenTTL:     8 * time.Hour,
		RoleFromDB:   true,
		CORSOrigins:  []string{"http://localhost:3000"},
		MaxQuestions: 10,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// FromEnv returns the defaults overlaid with environment variables.
func FromEnv() Config {
	return overlayEnv(Defaults())
}

// Load reads the TOML file at path (skipped when path is empty or the file is
// missing), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, err
		}
	}
	cfg = overlayEnv(cfg)
	return cfg, cfg.Validate()
}

// LoadFile decodes a TOML config. A missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to stat config: %w", err)
	}
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fc, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fc, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return fc, nil
}

func (fc FileConfig) apply(cfg *Config) error {
	setStr(&cfg.HTTPAddr, fc.Server.Addr)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.Server.CORSOrigins
	}
	setStr(&cfg.DBDriver, fc.Database.Driver)
	setStr(&cfg.DBDSN, fc.Database.DSN)
	setStr(&cfg.AuthSecret, fc.Auth.Secret)
	if fc.Auth.TokenTTL != nil {
		d, err := time.ParseDuration(*fc.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("auth.token_ttl: %w", err)
		}
		cfg.TokenTTL = d
	}
	if fc.Auth.RoleFromDB != nil {
		cfg.RoleFromDB = *fc.Auth.RoleFromDB
	}
	if fc.Exam.MaxQuestions != nil {
		cfg.MaxQuestions = *fc.Exam.MaxQuestions
	}
	setStr(&cfg.LogLevel, fc.Log.Level)
	setStr(&cfg.LogFormat, fc.Log.Format)
	return nil
}

func overlayEnv(cfg Config) Config {
	cfg.HTTPAddr = envOr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DBDriver = envOr("DB_DRIVER", cfg.DBDriver)
	cfg.DBDSN = envOr("DB_DSN", cfg.DBDSN)
	cfg.AuthSecret = envOr("AUTH_HMAC_SECRET", cfg.AuthSecret)
	cfg.TokenTTL = envDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.RoleFromDB = envBool("AUTH_ROLE_FROM_DB", cfg.RoleFromDB)
	cfg.CORSOrigins = csvOr("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MaxQuestions = envInt("EXAM_MAX_QUESTIONS", cfg.MaxQuestions)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	return cfg
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db driver %q: want sqlite or postgres", c.DBDriver)
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("exam max questions must be positive, got %d", c.MaxQuestions)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth secret is empty")
	}
	return nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
