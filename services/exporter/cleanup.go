package exporter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

var browserProcessNames = []string{"chrome", "chromium", "chromedriver"}

// KillOrphanedBrowsers kills browser processes spawned after
// startedAfter that outlived their slot, and returns how many were
// killed. Processes older than the run are never touched.
func KillOrphanedBrowsers(ctx context.Context, startedAfter time.Time) int {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		slog.Warn("failed to enumerate processes", "err", err)
		return 0
	}

	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		name = strings.ToLower(name)

		matched := false
		for _, candidate := range browserProcessNames {
			if strings.Contains(name, candidate) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		createdMs, err := p.CreateTimeWithContext(ctx)
		if err != nil || createdMs < startedAfter.UnixMilli() {
			continue
		}

		err = p.KillWithContext(ctx)
		if err != nil {
			slog.Warn("failed to kill orphaned browser process", "pid", p.Pid, "err", err)
			continue
		}
		killed++
	}
	return killed
}
