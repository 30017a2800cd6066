package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Service token secret
	if len(c.Auth.ServiceSecret) < 32 {
		errs = append(errs, "AUTH_SERVICE_SECRET must be at least 32 characters")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Time caps: zero means the session type is unusable, negative is a
	// misconfiguration either way.
	if c.Limits.CallLifetimeSeconds <= 0 {
		errs = append(errs, "LIMITS_CALL_LIFETIME_SECONDS must be positive")
	}
	if c.Limits.PracticeDailySeconds <= 0 {
		errs = append(errs, "LIMITS_PRACTICE_DAILY_SECONDS must be positive")
	}
	if c.Limits.RoleplayBasicSeconds <= 0 {
		errs = append(errs, "LIMITS_ROLEPLAY_BASIC_SECONDS must be positive")
	}
	if c.Limits.RoleplayProSeconds <= 0 {
		errs = append(errs, "LIMITS_ROLEPLAY_PRO_SECONDS must be positive")
	}
	if c.Limits.RoleplayProSeconds < c.Limits.RoleplayBasicSeconds {
		slog.Warn("roleplay Pro cap is below the Basic cap, check LIMITS_ROLEPLAY_* settings")
	}
	if c.Limits.QuotaCheckInterval <= 0 {
		errs = append(errs, "LIMITS_QUOTA_CHECK_INTERVAL must be positive")
	}
	if c.Limits.TranscriptWaitTimeout <= 0 {
		errs = append(errs, "LIMITS_TRANSCRIPT_WAIT_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
