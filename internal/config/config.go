package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env      string // application environment (e.g. "dev", "prod")
    Port     string // HTTP port to listen on
    LogLevel string // zap level: debug, info, warn, error

    DBDriver   string // mysql | sqlite
    DBUser     string // database username
    DBPass     string // database password (optional)
    DBHost     string // database host address
    DBPort     string // database port number
    DBName     string // database name
    SQLitePath string // database file when DBDriver is sqlite

    JWTSecret    string // secret used to sign JWTs
    AccessTTLMin int    // access token time-to-live in minutes
    BcryptCost   int    // bcrypt cost for password hashing

    // BootstrapEmail/Password create the first MANAGER when the staff
    // table is empty.
    BootstrapEmail    string
    BootstrapPassword string

    Feed FeedConfig

    HoldDuration       time.Duration // lifetime of a temporary hold
    HoldReportSchedule string        // cron spec for the lapsed-hold report

    RabbitURL string // AMQP URL; empty disables events
    AuditDir  string // directory for the unit audit log
}

// FeedConfig describes the external sales feed.
type FeedConfig struct {
    URL             string
    Timeout         time.Duration
    Attempts        int
    MaxAge          time.Duration // how long a snapshot is served without refetching
    Wait            time.Duration // how long a request waits for the feed
    RetryAfter      time.Duration // cooldown after a failed fetch
    RefreshSchedule string        // cron spec for background refreshes
}

// Load reads configuration values from environment variables.  Missing
// required variables are collected and reported together.
func Load() (Config, error) {
    var missing []string
    must := func(key string) string {
        v, ok := os.LookupEnv(key)
        if !ok || strings.TrimSpace(v) == "" {
            missing = append(missing, key)
        }
        return v
    }

    cfg := Config{
        Env:      envStr("APP_ENV", "dev"),
        Port:     envStr("APP_PORT", "8080"),
        LogLevel: envStr("LOG_LEVEL", "info"),

        DBDriver:   strings.ToLower(envStr("DB_DRIVER", "mysql")),
        DBPass:     os.Getenv("DB_PASS"),
        SQLitePath: envStr("SQLITE_PATH", "data/inventory.db"),

        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
        BcryptCost:   envInt("BCRYPT_COST", 12),

        BootstrapEmail:    os.Getenv("BOOTSTRAP_MANAGER_EMAIL"),
        BootstrapPassword: os.Getenv("BOOTSTRAP_MANAGER_PASSWORD"),

        Feed: FeedConfig{
            URL:             os.Getenv("SALES_FEED_URL"),
            Timeout:         envDur("SALES_FEED_TIMEOUT", 10*time.Second),
            Attempts:        envInt("SALES_FEED_RETRIES", 3),
            MaxAge:          envDur("SALES_FEED_MAX_AGE", 30*time.Second),
            Wait:            envDur("SALES_FEED_WAIT", 2*time.Second),
            RetryAfter:      envDur("SALES_FEED_RETRY_AFTER", 30*time.Second),
            RefreshSchedule: envStr("SALES_FEED_REFRESH", "@every 1m"),
        },

        HoldDuration:       envDur("HOLD_DURATION", 48*time.Hour),
        HoldReportSchedule: envStr("HOLD_REPORT_SCHEDULE", "@every 5m"),

        RabbitURL: firstEnv("RABBITMQ_URL", "AMQP_URL"),
        AuditDir:  envStr("AUDIT_LOG_DIR", "logs"),
    }

    switch cfg.DBDriver {
    case "mysql":
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    case "sqlite":
    default:
        return Config{}, fmt.Errorf("invalid DB_DRIVER %q", cfg.DBDriver)
    }

    if len(missing) > 0 {
        return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
    }
    if cfg.HoldDuration <= 0 {
        return Config{}, errors.New("HOLD_DURATION must be positive")
    }
    if cfg.Feed.Attempts < 1 {
        cfg.Feed.Attempts = 1
    }
    if _, err := strconv.Atoi(cfg.Port); err != nil {
        return Config{}, fmt.Errorf("invalid APP_PORT %q", cfg.Port)
    }
    return cfg, nil
}

// IsProduction reports whether the service runs in a production
// environment.
func (c Config) IsProduction() bool {
    return c.Env == "prod" || c.Env == "production"
}

func firstEnv(keys ...string) string {
    for _, k := range keys {
        if v := os.Getenv(k); v != "" {
            return v
        }
    }
    return ""
}
