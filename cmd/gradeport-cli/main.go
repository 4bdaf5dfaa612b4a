package main

import (
	"gradeport-backend/cmd/gradeport-cli/commands"
	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "gradeport-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
