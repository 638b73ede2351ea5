package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/italolelis/leechbot/internal/logctx"
)

// SweepWorkspaces deletes job workspaces under dir whose names start with prefix and
// that were last modified more than keepDuration ago. It runs at startup, before any
// job exists, so every matching directory belongs to a previous process. A zero
// keepDuration removes all of them. Entries that fail to delete are logged and skipped.
func SweepWorkspaces(ctx context.Context, dir, prefix string, keepDuration time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read download directory: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // already deleted
			}

			logger.Warn("Failed to stat workspace", "dir", path, "err", err)

			continue
		}

		if now.Sub(info.ModTime()) < keepDuration {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			logger.Warn("Failed to delete orphaned workspace", "dir", path, "err", err)

			continue
		}

		logger.Info("Deleted orphaned workspace", "dir", path)

		removed++
	}

	return removed, nil
}
