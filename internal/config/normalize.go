package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Services.TicketURL = trimURL(c.Services.TicketURL)
	c.Services.StorageURL = trimURL(c.Services.StorageURL)
	c.Services.StoragePublicURL = trimURL(c.Services.StoragePublicURL)
	c.Services.ContestAPIURL = trimURL(c.Services.ContestAPIURL)
	if c.Services.StoragePublicURL == "" {
		c.Services.StoragePublicURL = c.Services.StorageURL
	}

	c.Auth.AccessToken = strings.TrimSpace(c.Auth.AccessToken)
	c.Auth.RefreshToken = strings.TrimSpace(c.Auth.RefreshToken)
	c.Auth.RefreshURL = trimURL(c.Auth.RefreshURL)

	if len(c.Limits.VideoMIMETypes) == 0 {
		c.Limits.VideoMIMETypes = defaultVideoMIMETypes()
	}
	if len(c.Limits.ImageMIMETypes) == 0 {
		c.Limits.ImageMIMETypes = defaultImageMIMETypes()
	}
	for i, mime := range c.Limits.VideoMIMETypes {
		c.Limits.VideoMIMETypes[i] = strings.ToLower(strings.TrimSpace(mime))
	}
	for i, mime := range c.Limits.ImageMIMETypes {
		c.Limits.ImageMIMETypes[i] = strings.ToLower(strings.TrimSpace(mime))
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func trimURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}
