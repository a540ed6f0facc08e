package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	alarmapi "github.com/opseye/opseye/internal/alarm/api"
	adb "github.com/opseye/opseye/internal/alarm/database"
	"github.com/opseye/opseye/internal/alarm/service/converter"
	"github.com/opseye/opseye/internal/alarm/service/metacache"
	"github.com/opseye/opseye/internal/alarm/service/ratelimit"
	"github.com/opseye/opseye/internal/alarm/service/rulesync"
	"github.com/opseye/opseye/internal/alarm/service/vendorapi"
	"github.com/opseye/opseye/internal/config"
	"github.com/opseye/opseye/internal/middleware"
)

func main() {
	log.Info().Msg("Starting opseye api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := adb.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	eventStore := adb.NewEventStore(db)
	thresholdSource := adb.NewThresholdSource(db)

	var eventCache *adb.EventCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		eventCache = adb.NewEventCache(rdb, parseDuration(cfg.Alarm.EventTTL, 24*time.Hour))
	}

	conv := converter.New(eventStore, cfg.Alarm.AgentType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// metric unit metadata for volcengine rule conditions
	var units *metacache.Cache
	if cfg.Alarm.Metacache.PrometheusURL != "" {
		promClient, perr := promapi.NewClient(promapi.Config{Address: cfg.Alarm.Metacache.PrometheusURL})
		if perr != nil {
			log.Error().Err(perr).Msg("prometheus client init failed; rules will carry no units")
		} else {
			units = metacache.New(promv1.NewAPI(promClient), parseDuration(cfg.Alarm.Metacache.RefreshInterval, metacache.DefaultRefreshInterval))
			units.Start(ctx)
			defer units.Stop()
		}
	}
	if units == nil {
		units = metacache.New(nil, 0)
	}

	limits := ratelimit.NewRegistry()
	syncers := buildSyncers(cfg.Alarm.Datasources, limits, units)
	if len(syncers) > 0 {
		go rulesync.StartScheduler(ctx, rulesync.SchedulerDeps{
			Syncers: syncers,
			Source:  thresholdSource,
			Options: rulesync.SyncOptions{
				ContactGroupIDs: append(cfg.Alarm.Sync.ContactGroupIDs, cfg.Alarm.Sync.ContactGroups...),
				AlertMethods:    cfg.Alarm.Sync.AlertMethods,
				Webhook:         cfg.Alarm.Sync.Webhook,
				Level:           cfg.Alarm.Sync.Level,
			},
			Interval: parseDuration(cfg.Alarm.Sync.Interval, 10*time.Minute),
		})
	} else {
		log.Warn().Msg("no datasources configured, rule sync disabled")
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Authentication(cfg.Alarm.APIBearer))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	var cache alarmapi.EventCache
	if eventCache != nil {
		cache = eventCache
	}
	alarmapi.NewApi(router, conv, eventStore, cache)

	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router}
	go func() {
		log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("start opseye api server failed.")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("opseye api server exit...")
}

func buildSyncers(dss []config.DatasourceConfig, limits *ratelimit.Registry, units rulesync.UnitLookup) []rulesync.Syncer {
	var syncers []rulesync.Syncer
	for _, dc := range dss {
		ds := rulesync.Datasource{Name: dc.Name, Namespace: dc.Namespace}
		cred := vendorapi.Credential{Vendor: dc.Vendor, AccessKey: dc.AccessKey, SecretKey: dc.SecretKey, Quota: dc.Quota}
		switch dc.Vendor {
		case "aliyun":
			client := vendorapi.NewHTTPAliyunClient(dc.GatewayURL, cred, 0)
			syncers = append(syncers, rulesync.NewAliyunSyncer(ds, cred, client, limits))
		case "volcengine":
			client := vendorapi.NewHTTPVolcClient(dc.GatewayURL, cred, 0)
			syncers = append(syncers, rulesync.NewVolcSyncer(ds, cred, client, limits, units))
		default:
			log.Error().Str("datasource", dc.Name).Str("vendor", dc.Vendor).Msg("unsupported vendor, datasource skipped")
		}
	}
	return syncers
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
