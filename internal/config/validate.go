package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}

	if cfg.Scraper.RequestDelay < 0 {
		return fmt.Errorf("scraper.request_delay must be >= 0")
	}
	if cfg.Scraper.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if cfg.Scraper.MaxRetries < 1 {
		return fmt.Errorf("scraper.max_retries must be >= 1, got %d", cfg.Scraper.MaxRetries)
	}
	if cfg.Scraper.RetryDelay < 0 {
		return fmt.Errorf("scraper.retry_delay must be >= 0")
	}
	if len(cfg.Scraper.UserAgents) == 0 {
		return fmt.Errorf("scraper.user_agents must not be empty")
	}

	if cfg.Scheduler.Hour < 0 || cfg.Scheduler.Hour > 23 {
		return fmt.Errorf("scheduler.hour must be 0-23, got %d", cfg.Scheduler.Hour)
	}
	if cfg.Scheduler.Minute < 0 || cfg.Scheduler.Minute > 59 {
		return fmt.Errorf("scheduler.minute must be 0-59, got %d", cfg.Scheduler.Minute)
	}

	if cfg.Notion.Enabled {
		if cfg.Notion.Token == "" {
			return fmt.Errorf("notion.token is required when notion.enabled is true")
		}
		if cfg.Notion.DatabaseID == "" {
			return fmt.Errorf("notion.database_id is required when notion.enabled is true")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is a plausible product page URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
