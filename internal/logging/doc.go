// Package logging sets up structured slog logging for variomes and writes
// the per-service tab-separated error and query logs.
//
// Structured logs go to a size-rotated JSON file under the data directory.
// In MCP stdio mode nothing is written to stdout or stderr.
package logging
