package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	PublicURL string // origin the browser reaches us on (ex: https://marks.domain.ext)

	// Postgres
	DatabaseURL       string        // pgx DSN (ex: postgres://user:pass@db:5432/smartmarks)
	DBMaxOpenConns    int           // pool size
	DBMaxIdleConns    int           // idle connections kept
	DBConnMaxLifetime time.Duration // recycle connections after (ex: 30m)
	DBConnectTimeout  time.Duration // total time to retry connecting (ex: 30s)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Auth
	SessionSecret      string        // HS256 key for access tokens
	SessionTTL         time.Duration // session and token lifetime (ex: 1h)
	CookieName         string        // access token cookie
	CookieSecure       bool          // Secure flag on the cookie
	GoogleClientID     string        // OAuth client
	GoogleClientSecret string        // OAuth client secret
	OAuthStateTTL      time.Duration // how long a login redirect stays valid

	// View
	RefreshMode    string        // "incremental" | "refetch"
	NoticeQueue    int           // pending notices kept per view
	SweepInterval  time.Duration // expired-session sweep period
	ImportMaxBytes int64         // bookmarks.yaml upload limit

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict admin routes to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateLimitBurst  int // login attempts allowed in a burst per client
	RateLimitPerMin int // sustained login attempts per minute per client
}

// minSecretLen is the shortest HS256 key we accept.
const minSecretLen = 32

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SMARTMARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SMARTMARKS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SMARTMARKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SMARTMARKS_PRETTY_LOG", true),

		PublicURL: strings.TrimRight(requireEnv("SMARTMARKS_PUBLIC_URL"), "/"),

		// Postgres settings
		DatabaseURL:       requireEnv("SMARTMARKS_DATABASE_URL"),
		DBMaxOpenConns:    getenvInt("SMARTMARKS_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getenvInt("SMARTMARKS_DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: mustDuration("SMARTMARKS_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBConnectTimeout:  mustDuration("SMARTMARKS_DB_CONNECT_TIMEOUT", 30*time.Second),

		// Redis settings
		RedisAddr:             requireEnv("SMARTMARKS_REDIS_ADDR"),
		RedisUser:             getenv("SMARTMARKS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SMARTMARKS_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SMARTMARKS_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SMARTMARKS_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Auth settings
		SessionSecret:      requireEnv("SMARTMARKS_SESSION_SECRET"),
		SessionTTL:         mustDuration("SMARTMARKS_SESSION_TTL", time.Hour),
		CookieName:         getenv("SMARTMARKS_COOKIE_NAME", "sb-access-token"),
		CookieSecure:       mustBool("SMARTMARKS_COOKIE_SECURE", true),
		GoogleClientID:     requireEnv("SMARTMARKS_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: requireEnv("SMARTMARKS_GOOGLE_CLIENT_SECRET"),
		OAuthStateTTL:      mustDuration("SMARTMARKS_OAUTH_STATE_TTL", 10*time.Minute),

		// View settings
		RefreshMode:    strings.ToLower(getenv("SMARTMARKS_REFRESH_MODE", "incremental")),
		NoticeQueue:    getenvInt("SMARTMARKS_NOTICE_QUEUE_SIZE", 16),
		SweepInterval:  mustDuration("SMARTMARKS_SWEEP_INTERVAL", time.Minute),
		ImportMaxBytes: int64(getenvInt("SMARTMARKS_IMPORT_MAX_BYTES", 1<<20)),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SMARTMARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("SMARTMARKS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SMARTMARKS_TRUST_PROXY", true),

		RateLimitBurst:  getenvInt("SMARTMARKS_RATE_LIMIT_BURST", 10),
		RateLimitPerMin: getenvInt("SMARTMARKS_RATE_LIMIT_PER_MIN", 30),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

func (c *Config) validate() {
	// Validate Redis password configuration
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: SMARTMARKS_REDIS_PASSWORD is required when SMARTMARKS_REDIS_PASSWORD_REQUIRED=true")
	}

	if u, err := url.Parse(c.PublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		panic(fmt.Sprintf("❌ FATAL: SMARTMARKS_PUBLIC_URL must be an absolute http(s) URL, got %q", c.PublicURL))
	}

	if len(c.SessionSecret) < minSecretLen {
		panic(fmt.Sprintf("❌ FATAL: SMARTMARKS_SESSION_SECRET must be at least %d bytes", minSecretLen))
	}

	if c.RefreshMode != "incremental" && c.RefreshMode != "refetch" {
		panic(fmt.Sprintf("❌ FATAL: SMARTMARKS_REFRESH_MODE must be incremental or refetch, got %q", c.RefreshMode))
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.RedisPassword = "***REDACTED***"
	if c.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	cp.SessionSecret = "***REDACTED***"
	cp.GoogleClientSecret = "***REDACTED***"
	if u, err := url.Parse(c.DatabaseURL); err == nil && u.User != nil {
		u.User = url.User("***REDACTED***")
		cp.DatabaseURL = u.String()
	}
	return cp
}

// CallbackURL is where the OAuth provider sends the browser back.
func (c *Config) CallbackURL() string {
	return c.PublicURL + "/auth/callback"
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
