package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/cache/redisstore"
	"github.com/mohammed-shakir/osrm-access/internal/cache/sessions"
	"github.com/mohammed-shakir/osrm-access/internal/cache/tablecache"
	"github.com/mohammed-shakir/osrm-access/internal/core/config"
	"github.com/mohammed-shakir/osrm-access/internal/core/health"
	"github.com/mohammed-shakir/osrm-access/internal/core/httpclient"
	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
	"github.com/mohammed-shakir/osrm-access/internal/core/router"
	"github.com/mohammed-shakir/osrm-access/internal/core/server"
	"github.com/mohammed-shakir/osrm-access/internal/logger"
	"github.com/mohammed-shakir/osrm-access/internal/metrics"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
	"github.com/mohammed-shakir/osrm-access/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding profile via flag
	profileFlag := flag.String("profile", "", "OSRM routing profile")
	flag.Parse()

	cfg := config.FromEnv()
	if *profileFlag != "" {
		cfg.OSRMProfile = strings.TrimSpace(*profileFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Profile:   cfg.OSRMProfile,
		Component: "osrm-access",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		metricsHandler http.Handler
		metricsReg     prometheus.Registerer
	)
	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.MetricsAddr,
			Path:    cfg.MetricsPath,
			Profile: cfg.OSRMProfile,
			Build: metrics.BuildInfo{
				Version:   firstNonEmpty(os.Getenv("BUILD_VERSION"), Version),
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		if err := p.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server failed", "err", err)
			return 1
		}
		metricsHandler = p.Handler()
		metricsReg = p.Registerer()
	} else {
		observability.Init(nil, false)
	}
	observability.SetProfile(cfg.OSRMProfile)
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting osrm-access",
		"addr", cfg.Addr,
		"version", Version,
		"osrm", cfg.OSRMHost,
		"profile", cfg.OSRMProfile)

	reqCfg := osrm.RequestConfig{Host: cfg.OSRMHost, Version: cfg.OSRMVersion, Profile: cfg.OSRMProfile}
	client, err := osrm.New(appLog, httpclient.NewOutbound(cfg.OSRMTimeout, "osrm-access/"+Version), reqCfg)
	if err != nil {
		appLog.Error("invalid osrm config", "err", err)
		return 1
	}

	checks := map[string]health.Check{
		"osrm": func(ctx context.Context) error { return pingOSRM(ctx, client) },
	}

	var oracle matrix.Oracle = client
	var tables kafka.TablePurger
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()

		oracle = tablecache.New(client, rc,
			tablecache.Namespace{Host: cfg.OSRMHost, Version: cfg.OSRMVersion, Profile: cfg.OSRMProfile},
			tablecache.Config{TTL: cfg.TTLFor(cfg.OSRMProfile), OpTimeout: cfg.CacheOpTimeout},
			appLog)
		tables = rc
		checks["redis"] = rc.Ping
	}

	sess := sessions.New(cfg.SessionCacheSize, cfg.SessionTTL)

	opts := server.Options{Profile: cfg.OSRMProfile, Checks: checks, Metrics: metricsHandler}
	if cfg.Invalidation.Enabled {
		inv := cfg.Invalidation
		runner := kafka.New(
			kafka.NewConfig(true, inv.Brokers, inv.Topic, inv.GroupID, inv.DedupeSize),
			tables,
			kafka.Options{Logger: appLog, Register: metricsReg, Sessions: sess},
		)
		if err := runner.Start(ctx); err != nil {
			appLog.Error("invalidation runner failed", "err", err)
			return 1
		}
		defer runner.Stop()
		opts.Consumer = runner
	}

	deps := router.Deps{
		Logger:   appLog,
		Profile:  cfg.OSRMProfile,
		Routing:  client,
		Oracle:   oracle,
		Sessions: sess,
		Access: access.Config{
			MaxGridPoints: cfg.Access.MaxGridPoints,
			MaxBatch:      cfg.OSRMMaxTableSize,
			Resolution:    cfg.Access.Resolution,
			Workers:       cfg.Access.Workers,
		},
		Defaults: router.Defaults{
			Radius:  cfg.Access.Radius,
			Points:  cfg.Access.Points,
			Classes: cfg.Access.Classes,
		},
	}

	handler := server.NewHandler(appLog, deps, opts)
	if err := server.Run(ctx, cfg.Addr, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// pingOSRM treats any answer from the backend, including a refusal code, as
// reachable.
func pingOSRM(ctx context.Context, c *osrm.Client) error {
	_, err := c.Nearest(ctx, orb.Point{0, 0}, 1)
	var re *osrm.ResponseError
	if err == nil || errors.As(err, &re) {
		return nil
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
