package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures environment driven configuration values for the canteen
// reservation service.
type Config struct {
	HTTPPort           int           `env:"CANTEEN_HTTP_PORT" envDefault:"8080"`
	SQLiteDSN          string        `env:"CANTEEN_SQLITE_DSN" envDefault:"file:canteen.db?_foreign_keys=on"`
	BadgeSigningSecret string        `env:"CANTEEN_BADGE_SIGNING_SECRET"`
	BadgeTokenTTL      time.Duration `env:"CANTEEN_BADGE_TOKEN_TTL" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"CANTEEN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; invalid or missing values are
// reported with a localized error message naming the offending variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %w", err)
	}

	invalid := make([]string, 0, 2)
	if cfg.HTTPPort <= 0 {
		invalid = append(invalid, "CANTEEN_HTTP_PORT")
	}
	if cfg.BadgeTokenTTL <= 0 {
		invalid = append(invalid, "CANTEEN_BADGE_TOKEN_TTL")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "CANTEEN_SHUTDOWN_TIMEOUT")
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	if strings.TrimSpace(cfg.BadgeSigningSecret) == "" {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: CANTEEN_BADGE_SIGNING_SECRET")
	}

	return cfg, nil
}
