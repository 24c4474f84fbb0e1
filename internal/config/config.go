package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr         string // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir       string // logs directory
	LogLevel     string // debug | info | warn | error
	LogStdout    bool   // tee logs to stderr
	DatabaseURL  string // empty means use the in-memory store
	MonitorsFile string // YAML monitor registry; when set it takes precedence over the monitors table, even with DatabaseURL set

	SweepInterval    time.Duration
	ProbeTimeout     time.Duration
	SweepConcurrency int
	WebhookTimeout   time.Duration
	StateCacheTTL    time.Duration // only used with ping stores that cannot append atomically
	StatusCacheTTL   time.Duration

	AWSRegion    string
	SESFromEmail string // empty disables the email channel

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
	AllowedOrigins []string
}

// LoadDotEnv loads ENV_FILE (default ".env") if present. Variables already in
// the environment win.
func LoadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func FromEnv() Config {
	return Config{
		Addr:         str("API_ADDR", "127.0.0.1:8080"),
		LogDir:       str("LOG_DIR", "logs"),
		LogLevel:     str("LOG_LEVEL", "info"),
		LogStdout:    boolean("LOG_STDOUT", false),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MonitorsFile: os.Getenv("MONITORS_FILE"),

		SweepInterval:    millis("SWEEP_INTERVAL_MS", 60*time.Second),
		ProbeTimeout:     millis("PROBE_TIMEOUT_MS", 10*time.Second),
		SweepConcurrency: positive("SWEEP_CONCURRENCY", 1),
		WebhookTimeout:   millis("WEBHOOK_TIMEOUT_MS", 5*time.Second),
		StateCacheTTL:    millis("STATE_CACHE_TTL_MS", 5*time.Minute),
		StatusCacheTTL:   millis("STATUS_CACHE_TTL_MS", time.Minute),

		AWSRegion:    str("AWS_REGION", "us-east-1"),
		SESFromEmail: os.Getenv("SES_FROM_EMAIL"),

		PublicAPIKeys:  list("PUBLIC_API_KEYS"),
		AdminAPIKeys:   list("ADMIN_API_KEYS"),
		PublicRPM:      nonNegative("PUBLIC_RPM", 120),
		PublicBurst:    positive("PUBLIC_BURST", 60),
		AdminRPM:       nonNegative("ADMIN_RPM", 30),
		AdminBurst:     positive("ADMIN_BURST", 10),
		AllowedOrigins: list("ALLOWED_ORIGINS"),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// millis reads a millisecond count; zero and negatives fall back to def.
func millis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func positive(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// nonNegative allows 0, which disables a rate limit.
func nonNegative(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
