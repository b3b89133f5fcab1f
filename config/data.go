package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// DefaultMaxWorkers is the concurrency cap for the execution pool: the
// number of simultaneously busy workers never exceeds it.
const DefaultMaxWorkers = 4

// GetDataDir returns the directory where squish keeps its databases.
// Priority: SQUISH_DATA_DIR environment variable > "./data" default.
func GetDataDir() string {
	if dir := os.Getenv("SQUISH_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetHistoryDBPath returns the full path to the history database.
// Path: {DATA_DIR}/history.db
func GetHistoryDBPath() string {
	return filepath.Join(GetDataDir(), "history.db")
}

// GetOutputDir returns the directory where compressed files are written.
// Configurable via SQUISH_OUTPUT_DIR, defaults to "./out".
func GetOutputDir() string {
	if dir := os.Getenv("SQUISH_OUTPUT_DIR"); dir != "" {
		return dir
	}
	return "./out"
}

// GetMaxWorkers returns the execution pool size. SQUISH_MAX_WORKERS
// overrides the default; invalid or non-positive values are ignored.
func GetMaxWorkers() int {
	if v := os.Getenv("SQUISH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxWorkers
}
