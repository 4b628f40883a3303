package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServices() error {
	if strings.TrimSpace(c.Services.TicketURL) == "" {
		return configRequired("services.ticket_url")
	}
	if strings.TrimSpace(c.Services.StorageURL) == "" {
		return configRequired("services.storage_url")
	}
	if strings.TrimSpace(c.Services.ContestAPIURL) == "" {
		return configRequired("services.contest_api_url")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.VideoMaxBytes <= 0 {
		return errors.New("limits.video_max_bytes must be positive")
	}
	if c.Limits.ImageMaxBytes <= 0 {
		return errors.New("limits.image_max_bytes must be positive")
	}
	if c.Limits.VideoDurationLimitSeconds <= 0 {
		return errors.New("limits.video_duration_limit_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	for _, check := range []struct {
		name  string
		value int
	}{
		{"timeouts.ticket_request", c.Timeouts.TicketRequest},
		{"timeouts.video_upload", c.Timeouts.VideoUpload},
		{"timeouts.thumbnail_upload", c.Timeouts.ThumbnailUpload},
		{"timeouts.session_refresh", c.Timeouts.SessionRefresh},
	} {
		if check.value < 0 {
			return fmt.Errorf("%s must not be negative", check.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func configRequired(key string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/entryway/config.toml"
	}
	return fmt.Errorf("%s is required; edit %s (create with 'entryway config init')", key, defaultPath)
}
