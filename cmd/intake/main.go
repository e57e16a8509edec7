// Command intake turns finalized speech-capture utterances into transcript
// submissions. Utterances are buffered per capture session and flushed to the
// medtriage server after a period of silence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/medtriage/internal/capture"
	vc "github.com/linnemanlabs/medtriage/internal/cfg"
	"github.com/linnemanlabs/medtriage/internal/intake"
	"github.com/linnemanlabs/medtriage/internal/sdnotify"
)

const appName = "medtriage"
const component = "intake"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var (
		appCfg   vc.IntakeConfig
		logCfg   log.Config
		opsCfg   opshttp.Config
		traceCfg otelx.Config
	)
	appCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	opsCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	flag.Parse()
	if showVersion {
		fmt.Printf("%s (%s) %s (commit=%s, build_date=%s, go=%s)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion)
		return nil
	}

	cfg.FillFromEnv(flag.CommandLine, "MEDTRIAGE_INTAKE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		logCfg.Validate(),
		opsCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing intake",
		"version", vi.Version,
		"commit", vi.Commit,
		"api_base_url", appCfg.APIBaseURL,
		"silence_timeout", appCfg.SilenceTimeout.String(),
		"idle_timeout", appCfg.IdleTimeout.String(),
		"nats_url", appCfg.NATSURL,
		"nats_subject", appCfg.NATSSubject,
		"event_file", appCfg.EventFile,
		"admin_port", opsCfg.Port,
		"enable_tracing", traceCfg.EnableTracing,
	)

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	var m = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)

	var shutdownGate health.ShutdownGate
	readiness := health.All(shutdownGate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic
	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	src, closeSrc, err := openSource(appCfg, L)
	if err != nil {
		return err
	}
	defer closeSrc()

	client := intake.NewAPIClient(intake.ClientConfig{
		BaseURL:       appCfg.APIBaseURL,
		Token:         appCfg.APIToken,
		NurseID:       appCfg.NurseID,
		PatientID:     appCfg.PatientID,
		CreateTimeout: appCfg.CreateTimeout,
		SubmitTimeout: appCfg.SubmitTimeout,
	}, L)

	agg := intake.New(client, client, L, intake.NewMetrics(m.Registry()).Hooks(), intake.Options{
		SilenceTimeout: appCfg.SilenceTimeout,
		IdleTimeout:    appCfg.IdleTimeout,
	})

	if err := sdnotify.Ready("intake running"); err != nil && !errors.Is(err, sdnotify.ErrNoSocket) {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// Run returns when the signal context ends or a replayed file is exhausted.
	if err := agg.Run(ctx, src); err != nil {
		L.Error(ctx, err, "event source failed")
	}
	shutdownGate.Set("draining")
	_ = sdnotify.Stopping()

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), appCfg.FlushTimeout)
	if err := agg.Close(flushCtx); err != nil {
		L.Error(context.Background(), err, "final flush incomplete")
	}
	cancelFlush()

	budget := time.Duration(appCfg.ShutdownSeconds) * time.Second
	stopCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	if err := opsHTTPStop(stopCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}

// openSource picks the capture source. The returned close func is never nil.
func openSource(c vc.IntakeConfig, L log.Logger) (capture.Source, func(), error) {
	if c.NATSURL != "" {
		nc, err := capture.DialNATS(c.NATSURL, appName+"-"+component)
		if err != nil {
			return nil, nil, err
		}
		return capture.NewNATSSource(nc, c.NATSSubject, L), func() { _ = nc.Drain() }, nil
	}

	var r io.ReadCloser = os.Stdin
	if c.EventFile != "-" {
		f, err := os.Open(c.EventFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open event file: %w", err)
		}
		r = f
	}
	return capture.NewReaderSource(r, L), func() { _ = r.Close() }, nil
}
