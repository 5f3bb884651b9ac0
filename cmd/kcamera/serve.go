package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/wachiwi/kcamera/cmd/kcamera/handlers"
	"github.com/wachiwi/kcamera/pkg/archive"
	"github.com/wachiwi/kcamera/pkg/catalog"
	"github.com/wachiwi/kcamera/pkg/schedule"
	"github.com/wachiwi/kcamera/pkg/telemetry"
	"github.com/wachiwi/kcamera/pkg/trigger"
)

func newServeCmd(a *app) *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the schedule and the GPIO trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, driver)
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "sensor driver (pattern or pipe)")
	return cmd
}

func (a *app) serve(ctx context.Context, driver string) error {
	cfg := a.cfg

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName: "kcamera",
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					slog.Error("Error shutting down telemetry", "error", err)
				}
			}()
		}
	}

	session, err := a.openSession(driver)
	if err != nil {
		return err
	}
	defer session.Close()

	cat := catalog.New(cfg.Clips.Dir)
	arch := archive.New(session, cat, slog.Default())

	sched, err := schedule.New(schedule.Config{
		Spec:      cfg.Schedule.Spec,
		Location:  cfg.Schedule.Location,
		Duration:  cfg.Schedule.Duration,
		Retention: cfg.Clips.Retention,
	}, arch, cat, slog.Default())
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Trigger.Enabled {
		tcfg := trigger.Config{
			Chip:     cfg.Trigger.Chip,
			Line:     cfg.Trigger.Line,
			Debounce: cfg.Trigger.Debounce,
			Duration: cfg.Trigger.Duration,
		}
		line, err := trigger.Watch(tcfg, trigger.NewButton(ctx, arch, tcfg, slog.Default()))
		if err != nil {
			slog.Error("Failed to set up record trigger", "error", err)
		} else {
			defer line.Close()
			slog.Info("Record trigger armed", "chip", tcfg.Chip, "line", tcfg.Line)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	accounts := gin.Accounts{}
	if cfg.HTTP.User != "" && cfg.HTTP.Password != "" {
		accounts[cfg.HTTP.User] = cfg.HTTP.Password
	} else {
		slog.Warn("KCAMERA_HTTP_USER and KCAMERA_HTTP_PASSWORD are not set, write endpoints are unprotected")
	}
	router := handlers.NewRouter(
		&handlers.CameraHandler{Session: session, Archiver: arch},
		&handlers.ClipHandler{Catalog: cat},
		accounts,
	)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server is running", "addr", cfg.HTTP.Addr, "driver", session.DriverName())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	arch.Cancel("shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
