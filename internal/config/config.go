package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const defaultAvatar = "https://i.pinimg.com/736x/f4/a3/4e/f4a34ef7fd2f8d3a347a8c0dfb73eece.jpg"

type Config struct {
	HTTPAddr            string
	DBDSN               string
	JWTIssuer           string
	JWTSecret           string
	JWTTTL              time.Duration
	GoogleJWTTTL        time.Duration
	GoogleUserInfoURL   string
	GoogleAllowedEmails []string
	WebSocketOrigin     string
	RateLimit           float64
	RateBurst           int
	DefaultCapital      decimal.Decimal
	DefaultAvatar       string
	MigrateOnStart      bool
	LogLevel            string
	LogFormat           string
}

var required = []string{"HTTP_ADDR", "DB_DSN", "JWT_ISSUER", "JWT_SECRET"}

// Load reads configuration from the environment. When dir is set, a
// config.yml found there supplies values the environment leaves unset.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("JWT_TTL", "1h")
	v.SetDefault("GOOGLE_JWT_TTL", "168h")
	v.SetDefault("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v1/userinfo")
	v.SetDefault("WS_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT", 10)
	v.SetDefault("RATE_BURST", 30)
	v.SetDefault("DEFAULT_CAPITAL", "100")
	v.SetDefault("DEFAULT_AVATAR", defaultAvatar)
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	if dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	c.HTTPAddr = v.GetString("HTTP_ADDR")
	c.DBDSN = v.GetString("DB_DSN")
	c.JWTIssuer = v.GetString("JWT_ISSUER")
	c.JWTSecret = v.GetString("JWT_SECRET")

	var err error
	if c.JWTTTL, err = parseDuration(v, "JWT_TTL"); err != nil {
		return c, err
	}
	if c.GoogleJWTTTL, err = parseDuration(v, "GOOGLE_JWT_TTL"); err != nil {
		return c, err
	}
	c.GoogleUserInfoURL = v.GetString("GOOGLE_USERINFO_URL")
	c.GoogleAllowedEmails = splitList(v.GetString("GOOGLE_ALLOWED_EMAILS"))
	c.WebSocketOrigin = v.GetString("WS_ORIGIN")

	c.RateLimit = v.GetFloat64("RATE_LIMIT")
	if c.RateLimit <= 0 {
		return c, errors.New("invalid RATE_LIMIT: must be positive")
	}
	c.RateBurst = v.GetInt("RATE_BURST")
	if c.RateBurst <= 0 {
		return c, errors.New("invalid RATE_BURST: must be positive")
	}

	capital, err := decimal.NewFromString(strings.TrimSpace(v.GetString("DEFAULT_CAPITAL")))
	if err != nil || capital.IsNegative() {
		return c, errors.New("invalid DEFAULT_CAPITAL: use a non-negative decimal")
	}
	c.DefaultCapital = capital
	c.DefaultAvatar = v.GetString("DEFAULT_AVATAR")

	migrate, err := parseBool(v.GetString("MIGRATE_ON_START"))
	if err != nil {
		return c, errors.New("invalid MIGRATE_ON_START")
	}
	c.MigrateOnStart = migrate

	c.LogLevel = strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL")))
	c.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT")))
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return c, errors.New("invalid LOG_FORMAT: use json or console")
	}

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: use a positive duration like 1h", key)
	}
	return d, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes":
		return true, nil
	case "0", "f", "false", "no":
		return false, nil
	}
	return false, errors.New("invalid bool")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
