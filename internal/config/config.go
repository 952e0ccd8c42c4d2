package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const defaultHTTPTimeout = 20 * time.Second

// Config holds application settings sourced from environment variables.
type Config struct {
	BotToken            string        `env:"VALARIFY_BOT_TOKEN" validate:"required"`
	MentionToken        string        `env:"VALARIFY_BOT_USERNAME" validate:"required"`
	ResolverBaseURL     string        `env:"VALARIFY_API" validate:"required,url"`
	SpotifyClientID     string        `env:"SPOTIFY_C_ID" validate:"required"`
	SpotifyClientSecret string        `env:"SPOTIFY_C_SECRET" validate:"required"`
	LogLevel            string        `env:"LOG_LEVEL"`
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
}

// shellFields are only needed when the bot talks to Telegram.
var shellFields = []string{"BotToken", "MentionToken"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report env variable names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Load reads configuration from the environment and validates the settings
// shared by every command. Use ValidateShell before starting the bot.
func Load() (Config, error) {
	cfg := Config{
		BotToken:            env("VALARIFY_BOT_TOKEN"),
		MentionToken:        env("VALARIFY_BOT_USERNAME"),
		ResolverBaseURL:     env("VALARIFY_API"),
		SpotifyClientID:     env("SPOTIFY_C_ID"),
		SpotifyClientSecret: env("SPOTIFY_C_SECRET"),
		LogLevel:            env("LOG_LEVEL"),
		HTTPTimeout:         defaultHTTPTimeout,
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if raw := env("HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("HTTP_TIMEOUT is invalid: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	if err := describe(validate.StructExcept(cfg, shellFields...)); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ValidateShell checks the settings the Telegram session needs.
func (c Config) ValidateShell() error {
	return describe(validate.StructPartial(c, shellFields...))
}

func describe(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	if fe.Tag() == "required" {
		return fmt.Errorf("%s is not set", fe.Field())
	}
	return fmt.Errorf("%s is invalid", fe.Field())
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
