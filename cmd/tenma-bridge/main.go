// cmd/tenma-bridge/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/api"
	"github.com/tamzrod/tenma-bridge/internal/config"
	"github.com/tamzrod/tenma-bridge/internal/datalog"
	"github.com/tamzrod/tenma-bridge/internal/monitor"
	"github.com/tamzrod/tenma-bridge/internal/poller"
	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/writer"
)

func main() {
	cfgFlag := flag.String("config", "", "path to config file")
	flag.Parse()

	cfgPath := *cfgFlag
	if cfgPath == "" && flag.NArg() > 0 {
		cfgPath = flag.Arg(0)
	}
	if cfgPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tenma-bridge <config.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnv(cfg, os.Getenv)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	log := setupLogger(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithField("err", err).Error("tenma-bridge stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	reg := monitor.NewRegistry()
	metrics, err := monitor.New(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ---- serial line + driver ----
	p, drv, closePoller, err := poller.Build(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.PSU.Port, err)
	}
	defer closePoller()

	// ---- identification handshake ----
	id, err := identifySupply(drv, cfg.PSU.IdentityPrefix)
	if err != nil {
		return fmt.Errorf("identify on %s: %w", cfg.PSU.Port, err)
	}
	log.WithFields(logrus.Fields{
		"identity": id,
		"port":     cfg.PSU.Port,
	}).Info("supply detected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- exporters (optional) ----
	w, closeWriters, err := writer.Build(runCtx, cfg.Export, log)
	if err != nil {
		return fmt.Errorf("exporters: %w", err)
	}
	defer closeWriters()

	// ---- HTTP ----
	dl := datalog.New(cfg.DataLog.MaxEntries)
	srv := api.New(api.Config{
		StaticDir:         cfg.HTTP.StaticDir,
		AllowOrigin:       cfg.HTTP.AllowOrigin,
		BroadcastInterval: time.Duration(cfg.HTTP.BroadcastIntervalMs) * time.Millisecond,
	}, drv, dl, monitor.Handler(reg), log)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Streams end when runCtx is cancelled.
		BaseContext: func(net.Listener) context.Context { return runCtx },
	}

	httpErr := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.HTTP.Listen).Info("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// ---- cycle producer + orchestrator ----
	out := make(chan poller.PollResult)
	go p.Run(runCtx, out)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	o := newOrchestrator(srv, dl, metrics, w, id, log)
	done := make(chan struct{})
	go func() {
		o.run(runCtx, out, secTicker.C)
		close(done)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = fmt.Errorf("http: %w", err)
	}

	log.Info("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Warn("http shutdown failed")
	}

	<-done
	return runErr
}

// identifySupply runs the *IDN? handshake. Startup aborts on any error.
func identifySupply(drv *psu.Driver, prefix string) (string, error) {
	id, err := drv.Identify()
	if err != nil {
		return "", err
	}
	if err := psu.CheckIdentity(id, prefix); err != nil {
		return "", err
	}
	return id, nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.WithField("err", err).Warn("log file unavailable, using stderr")
		}
	}

	return log
}
