package preflight

import (
	"context"

	"entryway/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Optional settings that are empty skip their checks.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckCredentials(cfg))

	results = append(results, CheckEndpoint(ctx, "Ticket service", cfg.Services.TicketURL))
	results = append(results, CheckEndpoint(ctx, "Object storage", cfg.Services.StorageURL))
	results = append(results, CheckEndpoint(ctx, "Contest API", cfg.Services.ContestAPIURL))
	if cfg.Auth.RefreshURL != "" {
		results = append(results, CheckEndpoint(ctx, "Session refresh", cfg.Auth.RefreshURL))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
