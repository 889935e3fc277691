// Package ui renders decoded hub traffic and command output for the
// pethublocal CLI.
//
// When stdout is a terminal the Printer draws lipgloss styled blocks: a
// header per decoded message followed by one line per record, and boxed
// results for registry operations. Anywhere else (pipes, files, other
// programs) it writes one JSON object per line so the output can be fed to
// jq or another decoder.
//
// Logging is separate: zap output goes to stderr and is silent unless
// PETHUB_LOG_LEVEL or --log-level is set, so the curated output on stdout
// stays clean.
package ui
