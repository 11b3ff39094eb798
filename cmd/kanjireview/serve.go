package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/kanjireview/pkg/api"
	"github.com/japaniel/kanjireview/pkg/auth"
	"github.com/japaniel/kanjireview/pkg/notify"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the review reminder",
		Long: `Run the HTTP API and the background review reminder until interrupted.

Requires auth.jwt_secret and notification.telegram.chat_id. Without
notification.telegram.bot_token reminders are only logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.log

	if strings.HasPrefix(strings.ToLower(cfg.Log.Mode), "prod") {
		gin.SetMode(gin.ReleaseMode)
	}

	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Notification.Telegram.BotToken,
		cfg.Notification.Telegram.ChatID, cfg.Auth.TokenExpiryHours, log)

	var sink notify.Sink = notify.LogSink{Log: log.Named("reminder")}
	if cfg.Notification.Telegram.BotToken != "" {
		sink = notify.NewTelegramSink(cfg.Notification.Telegram.BotToken, cfg.Notification.Telegram.ChatID)
	} else {
		log.Warn("no telegram bot token configured, reminders are only logged")
	}
	poller := notify.NewPoller(a.queue, sink, cfg.Notification.RefreshInterval, log)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.RouterConfig{
			Controller:  a.ctrl,
			Auth:        authSvc,
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
