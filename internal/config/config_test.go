package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("FEED_BASE_URL", "https://feed.example.com/v1")
}

func TestLoad_AppEnvValidation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_FeedBaseURLRequired(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when FEED_BASE_URL is missing")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_BetterStackRequiresEndpointWhenEnabled(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BETTERSTACK_ENABLED", "true")
	t.Setenv("BETTERSTACK_ENDPOINT", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when BETTERSTACK_ENABLED=true without BETTERSTACK_ENDPOINT")
	}
}

func TestLoad_FeedConfigParsing(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FEED_API_KEY", "secret-key")
	t.Setenv("FEED_TIMEOUT", "12s")
	t.Setenv("FEED_MAX_RETRIES", "5")
	t.Setenv("FEED_CIRCUIT_FAILURE_COUNT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FeedBaseURL != "https://feed.example.com/v1" {
		t.Fatalf("unexpected FeedBaseURL: %q", cfg.FeedBaseURL)
	}
	if cfg.FeedAPIKey != "secret-key" {
		t.Fatalf("unexpected FeedAPIKey")
	}
	if cfg.FeedTimeout != 12*time.Second {
		t.Fatalf("unexpected FeedTimeout: %s", cfg.FeedTimeout)
	}
	if cfg.FeedMaxRetries != 5 {
		t.Fatalf("unexpected FeedMaxRetries: %d", cfg.FeedMaxRetries)
	}
	if cfg.FeedCircuitFailureCount != 7 {
		t.Fatalf("unexpected FeedCircuitFailureCount: %d", cfg.FeedCircuitFailureCount)
	}
}

func TestLoad_NotifierConfigParsing(t *testing.T) {
	setBaseEnv(t)

	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("NOTIFIER_ENABLED", "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.NotifierEnabled {
			t.Fatalf("expected NotifierEnabled=false by default")
		}
	})

	t.Run("enabled requires target url", func(t *testing.T) {
		t.Setenv("NOTIFIER_ENABLED", "true")
		t.Setenv("NOTIFIER_TARGET_URL", "")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error when NOTIFIER_ENABLED=true without target url")
		}
	})

	t.Run("enabled with valid values", func(t *testing.T) {
		t.Setenv("NOTIFIER_ENABLED", "true")
		t.Setenv("NOTIFIER_TARGET_URL", "https://hooks.example.com/pickem")
		t.Setenv("NOTIFIER_TOKEN", "hook-token")
		t.Setenv("NOTIFIER_QUEUE_SIZE", "64")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.NotifierEnabled {
			t.Fatalf("expected NotifierEnabled=true")
		}
		if cfg.NotifierTargetURL != "https://hooks.example.com/pickem" {
			t.Fatalf("unexpected NotifierTargetURL: %q", cfg.NotifierTargetURL)
		}
		if cfg.NotifierToken != "hook-token" {
			t.Fatalf("unexpected NotifierToken")
		}
		if cfg.NotifierQueueSize != 64 {
			t.Fatalf("unexpected NotifierQueueSize: %d", cfg.NotifierQueueSize)
		}
	})
}

func TestLoad_SyncScheduleParsing(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SYNC_LIVE_INTERVAL", "45s")
	t.Setenv("SYNC_STATUS_INTERVAL", "90s")
	t.Setenv("SYNC_DAILY_HOUR", "3")
	t.Setenv("SYNC_WEEKLY_WEEKDAY", "wednesday")
	t.Setenv("SYNC_WEEKLY_HOUR", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SyncLiveInterval != 45*time.Second {
		t.Fatalf("unexpected SyncLiveInterval: %s", cfg.SyncLiveInterval)
	}
	if cfg.SyncStatusInterval != 90*time.Second {
		t.Fatalf("unexpected SyncStatusInterval: %s", cfg.SyncStatusInterval)
	}
	if cfg.SyncDailyHour != 3 {
		t.Fatalf("unexpected SyncDailyHour: %d", cfg.SyncDailyHour)
	}
	if cfg.SyncWeeklyWeekday != time.Wednesday {
		t.Fatalf("unexpected SyncWeeklyWeekday: %s", cfg.SyncWeeklyWeekday)
	}
	if cfg.SyncWeeklyHour != 7 {
		t.Fatalf("unexpected SyncWeeklyHour: %d", cfg.SyncWeeklyHour)
	}
}

func TestLoad_SyncScheduleValidation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SYNC_DAILY_HOUR", "24")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for SYNC_DAILY_HOUR out of range")
	}
}

func TestParseWeekday_Invalid(t *testing.T) {
	if _, err := parseWeekday("someday"); err == nil {
		t.Fatalf("expected error for invalid weekday")
	}
}
