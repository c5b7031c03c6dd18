package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kekal/ModerationBot/actionlog"
	"github.com/kekal/ModerationBot/botapi"
	"github.com/kekal/ModerationBot/dispatcher"
	"github.com/kekal/ModerationBot/gateway"
	"github.com/kekal/ModerationBot/util/svcutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

// extra wait on top of the platform's retry-after hint before exiting on a rate limit
const exitRateLimitMargin = 5 * time.Second

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(dispatcher.ExitConfig)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "modbot",
		Usage:   "group moderation bot (deletes spam, restricts spammers)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "bot-token",
			Usage:    "platform bot token",
			Required: true,
			EnvVars:  []string{"BOT_TOKEN"},
		},
		&cli.Int64Flag{
			Name:    "owner",
			Usage:   "user ID of the bot owner; 0 disables owner checks",
			EnvVars: []string{"OWNER"},
		},
		&cli.StringFlag{
			Name:    "settings-path",
			Usage:   "path of the JSON settings document (ignored when redis is configured)",
			Value:   "data/settings.json",
			EnvVars: []string{"MODBOT_SETTINGS_PATH"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis server for settings, counters and caches; in-process state if empty",
			EnvVars: []string{"MODBOT_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "action-log-path",
			Usage:   "append-only plain-text action log; empty keeps entries in memory only",
			Value:   "data/bot_log.txt",
			EnvVars: []string{"MODBOT_ACTION_LOG_PATH"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "method, hostname, and port of the bot API",
			Value:   botapi.DefaultHost,
			EnvVars: []string{"MODBOT_API_HOST"},
		},
		&cli.DurationFlag{
			Name:    "api-delay",
			Usage:   "minimum spacing between consecutive platform API calls",
			Value:   gateway.DefaultDelay,
			EnvVars: []string{"MODBOT_API_DELAY"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs; empty disables",
			Value:   ":3998",
			EnvVars: []string{"MODBOT_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"MODBOT_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.DurationFlag{
			Name:    "fatal-backoff",
			Usage:   "how long to wait after a fatal error before exiting",
			Value:   5 * time.Minute,
			EnvVars: []string{"MODBOT_FATAL_BACKOFF"},
		},
	}

	app.Action = runBot

	return app.Run(args)
}

func runBot(cctx *cli.Context) error {
	alog, err := actionlog.Open(cctx.String("action-log-path"), actionlog.DefaultSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to setup logging:", err)
		return cli.Exit("", dispatcher.ExitConfig)
	}
	defer alog.Close()
	logger := svcutil.ConfigLogger(cctx, os.Stdout, alog.Handler)
	logger.Info("modbot starting", "version", versioninfo.Short())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := configOTEL(ctx, "modbot")
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to set up tracing: %v", err), dispatcher.ExitConfig)
	}
	defer shutdownOTEL()

	svc, err := NewService(ctx, Config{
		Token:        cctx.String("bot-token"),
		APIHost:      cctx.String("api-host"),
		APIDelay:     cctx.Duration("api-delay"),
		OwnerID:      cctx.Int64("owner"),
		SettingsPath: cctx.String("settings-path"),
		RedisURL:     cctx.String("redis-url"),
		ActionLog:    alog,
		Logger:       logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize service: %v", err), dispatcher.ExitConfig)
	}

	if addr := cctx.String("metrics-listen"); addr != "" {
		go func() {
			if err := RunMetrics(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to start metrics endpoint", "err", err)
			}
		}()
	}

	runErr := svc.Run(ctx)
	code := exitCode(svc, logger, runErr, cctx.Duration("fatal-backoff"))
	if code == dispatcher.ExitStop {
		return nil
	}
	return cli.Exit("", code)
}

// Decides the process exit code for the error returned by the update loop, waiting out any required back-off first.
func exitCode(svc *Service, logger *slog.Logger, err error, fatalBackoff time.Duration) int {
	if err == nil {
		logger.Info("shutting down")
		return dispatcher.ExitStop
	}

	var stop *dispatcher.StopError
	if errors.As(err, &stop) {
		logger.Info("stopping", "code", stop.Code, "reason", stop.Reason)
		return stop.Code
	}

	// the process context may already be done; these waits use their own
	ctx := context.Background()
	if ra, ok := botapi.RetryAfter(err); ok {
		wait := ra + exitRateLimitMargin
		logger.Error(botapi.PrintAPIError(err))
		logger.Error(fmt.Sprintf("Too many requests: %d seconds to wait.", int(wait.Seconds())))
		time.Sleep(wait)
		return dispatcher.ExitRateLimited
	}

	logger.Error("fatal error in update loop", "err", err)
	svc.Dispatcher.NotifyOwner(ctx, fmt.Sprintf("Bot service stopped on a fatal error: %v", err))
	logger.Info("waiting before exit", "backoff", fatalBackoff)
	time.Sleep(fatalBackoff)
	return dispatcher.ExitFatal
}
