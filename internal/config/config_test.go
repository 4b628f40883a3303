package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"entryway/internal/config"
)

func validBody() string {
	return `
[services]
ticket_url = "https://tickets.example.com/"
storage_url = "https://storage.example.com"
contest_api_url = "https://api.example.com"
`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(writeConfig(t, validBody()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Limits.VideoMaxBytes != 200<<20 {
		t.Fatalf("video max = %d", cfg.Limits.VideoMaxBytes)
	}
	if cfg.Limits.ImageMaxBytes != 10<<20 {
		t.Fatalf("image max = %d", cfg.Limits.ImageMaxBytes)
	}
	if cfg.Timeouts.ThumbnailUpload != 30 {
		t.Fatalf("thumbnail timeout = %d", cfg.Timeouts.ThumbnailUpload)
	}
	if cfg.Timeouts.SessionRefresh != 3 {
		t.Fatalf("session refresh timeout = %d", cfg.Timeouts.SessionRefresh)
	}
}

func TestLoadNormalizesURLs(t *testing.T) {
	cfg, _, _, err := config.Load(writeConfig(t, validBody()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Services.TicketURL != "https://tickets.example.com" {
		t.Fatalf("ticket url = %q", cfg.Services.TicketURL)
	}
	if cfg.Services.StoragePublicURL != "https://storage.example.com" {
		t.Fatalf("expected public url fallback, got %q", cfg.Services.StoragePublicURL)
	}
}

func TestLoadRejectsMissingEndpoints(t *testing.T) {
	_, _, _, err := config.Load(writeConfig(t, "[services]\nticket_url = \"https://t\"\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "storage_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	body := validBody() + "\n[logging]\nformat = \"xml\"\n"
	_, _, _, err := config.Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Services.TicketURL = "https://t"
	cfg.Services.StorageURL = "https://s"
	cfg.Services.ContestAPIURL = "https://a"
	cfg.Timeouts.VideoUpload = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWriteSampleReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("stale = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("write over existing file failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "stale") {
		t.Fatal("existing content survived the sample write")
	}
}
