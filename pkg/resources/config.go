package resources

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func setDefaults() {
	viper.SetDefault("APP_ENV", "local")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("HTTP_HOST", "localhost")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("DEBUG_PORT", "6060")

	viper.SetDefault("STORE", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "appointments")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MIGRATE", true)

	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_ENDPOINT", "localhost:4317")

	viper.SetDefault("NOTIFIER", "log")
	viper.SetDefault("NOTIFY_FROM", "Doctors Appointment System <noreply@example.com>")
	viper.SetDefault("NOTIFY_RETRY_ATTEMPTS", 3)
	viper.SetDefault("NOTIFY_RETRY_DELAY", 200*time.Millisecond)
	viper.SetDefault("NOTIFY_ON_NOOP_UPDATE", true)

	viper.SetDefault("OUTBOX_SCHEDULE", "@every 1m")
	viper.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	viper.SetDefault("OUTBOX_BATCH", 100)

	viper.SetDefault("RATE_LIMIT_RPS", 50.0)
	viper.SetDefault("RATE_LIMIT_BURST", 100)
}

// Default loads .env (when present) and the environment into viper, sets up the
// global zerolog logger and returns ctx carrying it.
func Default(ctx context.Context, name string, version string) context.Context {
	_ = godotenv.Load()

	setDefaults()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().
		Str("service", name).Str("version", version).Str("env", viper.GetString("APP_ENV")).
		Logger()
	zerolog.DefaultContextLogger = &log.Logger

	return log.Logger.WithContext(ctx)
}

func DatabaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(viper.GetString("DB_USER"), viper.GetString("DB_PASSWORD")),
		Host:     fmt.Sprintf("%s:%s", viper.GetString("DB_HOST"), viper.GetString("DB_PORT")),
		Path:     "/" + viper.GetString("DB_NAME"),
		RawQuery: "sslmode=" + url.QueryEscape(viper.GetString("DB_SSLMODE")),
	}

	return u.String()
}
