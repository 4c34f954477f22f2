package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"network-monitor/internal/adapters/storage/memory"
	cfgpkg "network-monitor/internal/infrastructure/config"
	httpapi "network-monitor/internal/infrastructure/httpapi"
	obs "network-monitor/internal/infrastructure/observability"
	"network-monitor/internal/usecase"
)

const appName = "network-monitor"

var app = &cli.App{
	Name:    appName,
	Usage:   "record and inspect network requests",
	Version: obs.BuildInfo().String(),
	Commands: []*cli.Command{
		{
			Name:   "serve",
			Usage:  "run the monitor API, websocket hub and capture proxy",
			Action: serve,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "config",
					Usage:   "Path to a YAML config file",
					EnvVars: []string{"CONFIG_FILE"},
				},
				&cli.StringFlag{
					Name:  "addr",
					Usage: "Listen address, overrides ADDR",
				},
			},
		},
		{
			Name:      "replay",
			Usage:     "load a HAR file and print its filtered, sorted request table",
			ArgsUsage: "FILE.har[.gz]",
			Action:    replayAction,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "filter",
					Usage: "Category filter (all, html, css, js, xhr, fonts, images, media, flash, other), repeatable",
				},
				&cli.StringFlag{
					Name:  "url",
					Usage: "Only show requests whose URL contains this text",
				},
				&cli.StringFlag{
					Name:  "sort",
					Value: "waterfall",
					Usage: "Sort key (waterfall, status, method, file, domain, type, transferred, size)",
				},
				&cli.BoolFlag{
					Name:  "desc",
					Usage: "Sort descending",
				},
			},
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cc *cli.Context) error {
	cfg, err := cfgpkg.LoadFrom(cc.String("config"))
	if err != nil {
		return err
	}
	if addr := cc.String("addr"); addr != "" {
		cfg.Addr = addr
	}

	logger := obs.NewLogger(cfg.LogLevel, cfg.DevMode)
	logger.Info().Str("addr", cfg.Addr).Msg("starting network-monitor")

	metrics := obs.NewMetrics()
	hub := httpapi.NewMonitorHub()
	store := memory.NewStore(cfg.MaxSessions, cfg.SessionTTL)
	svc := usecase.NewMonitorService(store,
		usecase.WithNotifier(hub),
		usecase.WithMetrics(metrics),
		usecase.WithLogger(logger),
		usecase.WithDebounce(time.Duration(cfg.RefreshDebounceMs)*time.Millisecond),
		usecase.WithDefaultView(cfg.DefaultSort, cfg.DefaultFilters),
	)
	defer svc.Close()
	deps := &httpapi.Deps{Cfg: cfg, Logger: logger, Metrics: metrics, Svc: svc, Monitor: hub}

	ctx, stop := signal.NotifyContext(cc.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		return nil
	})
	err = g.Wait()
	logger.Info().Msg("network-monitor stopped")
	return err
}
