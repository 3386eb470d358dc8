package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
)

// app holds the services a command needs, built against the configured database.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	reports *service.ReportService
	alerts  *service.AlertService
}

func loadConfig(verbose bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !verbose {
		return cfg, zap.NewNop(), nil
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func openApp(ctx context.Context, verbose bool) (*app, error) {
	cfg, logr, err := loadConfig(verbose)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	validate := validation.New()
	students := repository.NewStudentRepository(db)
	classes := repository.NewClassRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	// one-shot commands gain nothing from a report cache
	cache := service.NewCacheService(nil, nil, 0, logr, false)

	reports := service.NewReportService(attendance, students, classes, repository.NewDayOffRepository(db), cache, nil, validate,
		service.ReportConfig{MaxLimit: cfg.Reports.MaxPageSize}, logr)
	thresholds := service.NewThresholdService(repository.NewThresholdRepository(db), validate, logr)
	alerts := service.NewAlertService(attendance, students, classes, thresholds, nil,
		service.AlertConfig{WindowDays: cfg.Alerts.WindowDays, WarningBuffer: cfg.Alerts.WarningBuffer}, logr)

	return &app{cfg: cfg, logger: logr, db: db, reports: reports, alerts: alerts}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	_ = a.db.Close()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
