package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"squish/config"
	"squish/logger"
)

// WriteToDirectory writes content to a local directory tree.
// accessInfo keys: filename (required), baseDir (defaults to the
// configured output dir), folder (optional subfolder).
func WriteToDirectory(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	baseDir := accessInfo["baseDir"]
	if baseDir == "" {
		baseDir = config.GetOutputDir()
	}
	folder := accessInfo["folder"]
	filename := accessInfo["filename"]
	if filename == "" {
		return fmt.Errorf("missing required accessInfo key: filename")
	}

	fullDir := filepath.Join(baseDir, folder)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	fullPath := filepath.Join(fullDir, filename)
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}

	logger.Debugf("wrote '%s' to '%s'", filename, fullPath)
	return nil
}
