package main

import (
	"context"
	"flag"
	"net/http"

	"gradeport-backend/lib/configutil"
	"gradeport-backend/lib/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	shutdown := InitTelemetry(ctx, *verbose)
	defer shutdown(context.Background())

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	mux := http.NewServeMux()
	err = InitCatalog(mux, cfg)
	if err != nil {
		serviceutil.Fatal("init catalog", err)
	}

	port := cfg.Port
	if port == 0 {
		port = 8000
	}
	serviceutil.StartHttpServer(port, mux)
}
