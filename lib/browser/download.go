package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadWatcher polls a download directory for a finished file.
// A file only counts as finished once its size has been stable across
// StabilityChecks consecutive polls; a file that is still being
// written must never be handed to a reader.
type DownloadWatcher struct {
	Dir string
	// defaults: 500ms interval, 3 checks
	PollInterval    time.Duration
	StabilityChecks int
}

func NewDownloadWatcher(dir string) DownloadWatcher {
	return DownloadWatcher{
		Dir:             dir,
		PollInterval:    time.Millisecond * 500,
		StabilityChecks: 3,
	}
}

// Snapshot returns the names currently present, so callers can
// distinguish files that predate an export trigger.
func (w DownloadWatcher) Snapshot() map[string]bool {
	seen := map[string]bool{}
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return seen
	}
	for _, e := range entries {
		seen[e.Name()] = true
	}
	return seen
}

func isPartialDownload(name string) bool {
	return strings.HasSuffix(name, ".crdownload") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp")
}

// Wait blocks until a file accepted by match is present and stable,
// returning its name relative to the watcher directory.
func (w DownloadWatcher) Wait(ctx context.Context, timeout time.Duration, match func(name string) bool) (string, error) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = time.Millisecond * 500
	}
	checks := w.StabilityChecks
	if checks <= 0 {
		checks = 3
	}

	type progress struct {
		size   int64
		stable int
	}
	candidates := map[string]*progress{}

	deadline := time.Now().Add(timeout)
	for {
		entries, err := os.ReadDir(w.Dir)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || isPartialDownload(name) || !match(name) {
				continue
			}
			info, err := os.Stat(filepath.Join(w.Dir, name))
			if err != nil {
				continue
			}

			p, ok := candidates[name]
			if !ok {
				candidates[name] = &progress{size: info.Size(), stable: 1}
				continue
			}
			if info.Size() == p.size {
				p.stable++
			} else {
				p.size = info.Size()
				p.stable = 1
			}
			if p.stable >= checks {
				return name, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no stable download appeared within %s", timeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
