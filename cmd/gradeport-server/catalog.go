package main

import (
	"net/http"

	"gradeport-backend/lib/browser/webdriver"
	"gradeport-backend/lib/serviceutil"
	"gradeport-backend/lib/sqliteutil"
	"gradeport-backend/services/catalog"
	"gradeport-backend/services/catalog/db"
	"gradeport-backend/services/exporter"
)

type Config struct {
	Port int `json:"port"`
	// Database is a local sqlite file path or a libsql url.
	Database    string            `json:"database"`
	AccessToken string            `json:"access_token"`
	Webdriver   webdriver.Options `json:"webdriver"`
	Exporter    exporter.Options  `json:"exporter"`
}

func InitCatalog(mux *http.ServeMux, cfg Config) error {
	database, err := sqliteutil.OpenDB(db.Schema, cfg.Database)
	if err != nil {
		return err
	}

	factory, err := webdriver.NewClient(cfg.Webdriver)
	if err != nil {
		return err
	}

	exporterService := exporter.NewService(factory, cfg.Exporter)
	catalogService := catalog.NewService(database, exporterService)

	api := http.NewServeMux()
	catalogService.RegisterRoutes(api)
	mux.Handle("/", serviceutil.RequireBearer(cfg.AccessToken, api))
	return nil
}
