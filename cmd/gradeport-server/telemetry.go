package main

import (
	"context"

	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) func(ctx context.Context) error {
	t, err := telemetry.SetupFromEnv(ctx, "gradeport-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(verbose)
	return t.Shutdown
}
