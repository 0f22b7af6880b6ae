package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{name: "empty", value: "", expected: nil},
		{name: "single value", value: "value1", expected: []string{"value1"}},
		{name: "multiple values", value: "value1, value2 ,value3", expected: []string{"value1", "value2", "value3"}},
		{name: "quotes and blanks", value: `"10.0.0.0/8", ,'1.2.3.4'`, expected: []string{"10.0.0.0/8", "1.2.3.4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.value)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() length = %v, want %v", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SMARTMARKS_PUBLIC_URL", "https://marks.example.com/")
	t.Setenv("SMARTMARKS_DATABASE_URL", "postgres://app:secret@db:5432/smartmarks")
	t.Setenv("SMARTMARKS_REDIS_ADDR", "redis:6379")
	t.Setenv("SMARTMARKS_REDIS_PASSWORD", "redis-secret")
	t.Setenv("SMARTMARKS_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SMARTMARKS_GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("SMARTMARKS_GOOGLE_CLIENT_SECRET", "client-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q", cfg.ListenPort)
	}
	if cfg.PublicURL != "https://marks.example.com" {
		t.Errorf("PublicURL should lose its trailing slash, got %q", cfg.PublicURL)
	}
	if cfg.CallbackURL() != "https://marks.example.com/auth/callback" {
		t.Errorf("CallbackURL() = %q", cfg.CallbackURL())
	}
	if cfg.SessionTTL != time.Hour || cfg.OAuthStateTTL != 10*time.Minute {
		t.Errorf("SessionTTL = %v, OAuthStateTTL = %v", cfg.SessionTTL, cfg.OAuthStateTTL)
	}
	if cfg.CookieName != "sb-access-token" || !cfg.CookieSecure {
		t.Errorf("cookie = %q secure=%v", cfg.CookieName, cfg.CookieSecure)
	}
	if cfg.RefreshMode != "incremental" {
		t.Errorf("RefreshMode = %q", cfg.RefreshMode)
	}
	if cfg.NoticeQueue != 16 || cfg.SweepInterval != time.Minute || cfg.ImportMaxBytes != 1<<20 {
		t.Errorf("view defaults = %d %v %d", cfg.NoticeQueue, cfg.SweepInterval, cfg.ImportMaxBytes)
	}
	if cfg.DBMaxOpenConns != 10 || cfg.DBMaxIdleConns != 5 || cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Errorf("db pool defaults = %d %d %v", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	}
	if cfg.RedisDB != 0 || cfg.RedisUser != "default" {
		t.Errorf("redis defaults = db %d user %q", cfg.RedisDB, cfg.RedisUser)
	}
	if cfg.AllowedHosts != nil || cfg.AllowedCIDRS != nil || !cfg.TrustProxy {
		t.Errorf("access defaults = %v %v %v", cfg.AllowedHosts, cfg.AllowedCIDRS, cfg.TrustProxy)
	}
	if cfg.RateLimitBurst != 10 || cfg.RateLimitPerMin != 30 {
		t.Errorf("rate limit defaults = %d %d", cfg.RateLimitBurst, cfg.RateLimitPerMin)
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "missing database url", key: "SMARTMARKS_DATABASE_URL", value: ""},
		{name: "missing google client", key: "SMARTMARKS_GOOGLE_CLIENT_ID", value: ""},
		{name: "missing redis password", key: "SMARTMARKS_REDIS_PASSWORD", value: ""},
		{name: "short secret", key: "SMARTMARKS_SESSION_SECRET", value: "short"},
		{name: "relative public url", key: "SMARTMARKS_PUBLIC_URL", value: "marks.example.com"},
		{name: "unknown refresh mode", key: "SMARTMARKS_REFRESH_MODE", value: "push"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}

func TestLoadRedisPasswordOptional(t *testing.T) {
	setRequired(t)
	t.Setenv("SMARTMARKS_REDIS_PASSWORD", "")
	t.Setenv("SMARTMARKS_REDIS_PASSWORD_REQUIRED", "false")
	t.Setenv("SMARTMARKS_REFRESH_MODE", "Refetch")

	cfg := Load()
	if cfg.RefreshMode != "refetch" {
		t.Errorf("RefreshMode = %q, want refetch", cfg.RefreshMode)
	}
}

func TestRedacted(t *testing.T) {
	setRequired(t)
	cfg := Load()

	r := cfg.Redacted()
	for name, v := range map[string]string{
		"RedisPassword":      r.RedisPassword,
		"SessionSecret":      r.SessionSecret,
		"GoogleClientSecret": r.GoogleClientSecret,
	} {
		if v != "***REDACTED***" {
			t.Errorf("%s not redacted: %q", name, v)
		}
	}
	if strings.Contains(r.DatabaseURL, "secret") {
		t.Errorf("DatabaseURL leaks the password: %q", r.DatabaseURL)
	}
	if cfg.SessionSecret == "***REDACTED***" {
		t.Error("Redacted() must not modify the original")
	}
}
