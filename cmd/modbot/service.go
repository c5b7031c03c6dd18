package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kekal/ModerationBot/actionlog"
	"github.com/kekal/ModerationBot/automod"
	"github.com/kekal/ModerationBot/automod/cachestore"
	"github.com/kekal/ModerationBot/automod/countstore"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/dispatcher"
	"github.com/kekal/ModerationBot/gateway"
	"github.com/kekal/ModerationBot/policystore"
	"github.com/kekal/ModerationBot/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	Token        string
	APIHost      string
	APIDelay     time.Duration
	OwnerID      int64
	SettingsPath string
	RedisURL     string
	ActionLog    *actionlog.Log
	Logger       *slog.Logger
}

type Service struct {
	Dispatcher *dispatcher.Dispatcher

	logger    *slog.Logger
	reversals *automod.ReversalScheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewService(ctx context.Context, config Config) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	client := &botapi.Client{
		Client: util.RobustHTTPClient(util.LongPollTimeout),
		Host:   config.APIHost,
		Token:  config.Token,
	}
	gw := gateway.New(client, config.APIDelay, logger)

	var backend policystore.Backend
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		rb, err := policystore.NewRedisBackend(config.RedisURL, policystore.DefaultRedisKey)
		if err != nil {
			return nil, fmt.Errorf("initializing redis policy backend: %w", err)
		}
		backend = rb

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %w", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, cachestore.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh
	} else {
		backend = policystore.NewFileBackend(config.SettingsPath)
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(1_000, cachestore.DefaultTTL)
	}

	store := policystore.NewStore(backend, logger)
	store.Load(ctx)

	alog := config.ActionLog
	if alog == nil {
		alog = actionlog.New(store.LogSize())
	} else {
		alog.SetSize(store.LogSize())
	}

	runCtx, cancel := context.WithCancel(ctx)
	reversals := automod.NewReversalScheduler(runCtx, logger)
	engine := &automod.Engine{
		Logger:    logger.With("component", "automod"),
		Client:    gw,
		Store:     store,
		Reversals: reversals,
		Cache:     cache,
		Counters:  counters,
	}

	d := &dispatcher.Dispatcher{
		Logger:    logger.With("component", "dispatcher"),
		Client:    gw,
		Engine:    engine,
		Store:     store,
		ActionLog: alog,
		OwnerID:   config.OwnerID,
	}

	return &Service{
		Dispatcher: d,
		logger:     logger,
		reversals:  reversals,
		cancel:     cancel,
		ctx:        runCtx,
	}, nil
}

// Run consumes updates until the process context is cancelled, a command asks to stop, or the loop fails. Pending throttle reversals are abandoned on return.
func (s *Service) Run(ctx context.Context) error {
	defer s.reversals.Wait()
	defer s.cancel()

	err := s.Dispatcher.Run(s.ctx)
	if err != nil {
		s.logger.Info("update loop ended", "err", err, "cursor", s.Dispatcher.Cursor())
	}
	if ctx.Err() != nil && err == nil {
		s.logger.Info("interrupted", "cursor", s.Dispatcher.Cursor())
	}
	return err
}

func RunMetrics(listen string) error {
	http.Handle("/metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics"))
	return http.ListenAndServe(listen, nil)
}
