// Package logging wraps log/slog with the construction options, typed
// attribute helpers, and context-derived fields shared across the pipeline.
package logging
