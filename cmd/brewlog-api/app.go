package main

import (
	"net/http"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/auth"
	"github.com/aradhanasaha/coffee-sub000/internal/config"
	"github.com/aradhanasaha/coffee-sub000/internal/database"
	"github.com/aradhanasaha/coffee-sub000/internal/delivery"
	"github.com/aradhanasaha/coffee-sub000/internal/feed"
	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	"github.com/aradhanasaha/coffee-sub000/internal/logging"
	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/aradhanasaha/coffee-sub000/internal/server"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"github.com/aradhanasaha/coffee-sub000/internal/sweep"
	"github.com/aradhanasaha/coffee-sub000/internal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the wired services shared by the server and the one-shot commands.
type application struct {
	config        config.AppConfig
	logger        *zap.Logger
	db            *gorm.DB
	registry      *prometheus.Registry
	metrics       *metrics.Collectors
	users         *users.Service
	writer        *notifications.Writer
	inbox         *notifications.Inbox
	social        *social.Service
	feed          *feed.Service
	subscriptions *push.SubscriptionStore
	dispatcher    *push.Dispatcher
	verifier      *push.SecretVerifier
	sweeper       *sweep.Sweeper
	realtime      *server.RealtimeDispatcher
}

func newApplication(appConfig config.AppConfig) (_ *application, err error) {
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, err
	}
	app := &application{config: appConfig, logger: logger, db: db}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err = database.Migrate(db, logger); err != nil {
		return nil, err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if app.metrics, err = metrics.NewCollectors(app.registry); err != nil {
		return nil, err
	}

	idProvider := ids.NewUUIDProvider()

	if app.users, err = users.NewService(users.ServiceConfig{Database: db, Clock: time.Now, Logger: logger.Named("users")}); err != nil {
		return nil, err
	}
	if app.writer, err = notifications.NewWriter(notifications.WriterConfig{
		Database:   db,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger.Named("notifications"),
		Metrics:    app.metrics,
	}); err != nil {
		return nil, err
	}
	if app.inbox, err = notifications.NewInbox(db); err != nil {
		return nil, err
	}
	if app.social, err = social.NewService(social.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Notifier:   app.writer,
		Moderator:  social.AllowAll{},
		Logger:     logger.Named("social"),
	}); err != nil {
		return nil, err
	}
	if app.feed, err = feed.NewService(feed.ServiceConfig{
		Content:         app.social.Store(),
		Follows:         app.social.Store(),
		Names:           app.users,
		FetchMultiplier: appConfig.FeedFetchMultiplier,
		MaxLimit:        appConfig.FeedMaxLimit,
		Clock:           time.Now,
		Logger:          logger.Named("feed"),
		Metrics:         app.metrics,
	}); err != nil {
		return nil, err
	}
	if app.subscriptions, err = push.NewSubscriptionStore(db, idProvider, time.Now); err != nil {
		return nil, err
	}
	transport, err := newPushTransport(appConfig)
	if err != nil {
		return nil, err
	}
	if app.dispatcher, err = push.NewDispatcher(push.DispatcherConfig{
		Subscriptions:  app.subscriptions,
		Transport:      transport,
		Names:          app.users,
		SendTimeout:    appConfig.PushSendTimeout,
		MaxConcurrency: appConfig.PushMaxConcurrency,
		Logger:         logger.Named("push"),
		Metrics:        app.metrics,
	}); err != nil {
		return nil, err
	}
	if app.verifier, err = push.NewSecretVerifier(appConfig.DispatchSecret); err != nil {
		return nil, err
	}
	if app.sweeper, err = sweep.New(sweep.Config{
		Users:    app.users,
		Activity: app.social.Store(),
		Notifier: app.writer,
		Clock:    time.Now,
		Window:   appConfig.SweepWindow,
		BatchCap: appConfig.SweepBatchCap,
		Logger:   logger.Named("sweep"),
		Metrics:  app.metrics,
	}); err != nil {
		return nil, err
	}
	app.realtime = server.NewRealtimeDispatcher()
	return app, nil
}

func newPushTransport(appConfig config.AppConfig) (push.Transport, error) {
	if !appConfig.PushEnabled() {
		return push.DisabledTransport{}, nil
	}
	return push.NewWebPushTransport(push.VAPIDConfig{
		PublicKey:  appConfig.VAPIDPublicKey,
		PrivateKey: appConfig.VAPIDPrivateKey,
		Subscriber: appConfig.PushSubscriber,
		TTLSeconds: appConfig.PushTTLSeconds,
	}, &http.Client{Timeout: appConfig.PushSendTimeout})
}

func (a *application) httpHandler() (http.Handler, error) {
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(a.config.AuthSigningSecret),
		Issuer:        a.config.AuthIssuer,
		CookieName:    a.config.AuthCookieName,
	})
	if err != nil {
		return nil, err
	}
	vapidPublicKey := ""
	if a.config.PushEnabled() {
		vapidPublicKey = a.config.VAPIDPublicKey
	}
	return server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessions,
		Profiles:       a.users,
		Feed:           a.feed,
		Social:         a.social,
		Inbox:          a.inbox,
		Subscriptions:  a.subscriptions,
		Dispatcher:     a.dispatcher,
		DispatchAuth:   a.verifier,
		Sweeper:        a.sweeper,
		Realtime:       a.realtime,
		VAPIDPublicKey: vapidPublicKey,
		MetricsHandler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
		Logger:         a.logger.Named("http"),
	})
}

// outboxRelay chains the in-app stream with push delivery, either through the remote
// dispatch endpoint or in-process.
func (a *application) outboxRelay() (*delivery.Relay, error) {
	var pushInvoker delivery.Invoker
	if a.config.DispatchWebhookURL != "" {
		webhook, err := delivery.NewWebhookInvoker(a.config.DispatchWebhookURL, a.config.DispatchSecret, a.config.PushSendTimeout*2, a.logger.Named("webhook"))
		if err != nil {
			return nil, err
		}
		pushInvoker = webhook
	} else {
		local, err := delivery.NewLocalInvoker(a.dispatcher, a.logger.Named("dispatch"))
		if err != nil {
			return nil, err
		}
		pushInvoker = local
	}
	return delivery.NewRelay(delivery.RelayConfig{
		Database:     a.db,
		Invoker:      pushInvoker,
		Stream:       a.realtime,
		Clock:        time.Now,
		Logger:       a.logger.Named("relay"),
		Metrics:      a.metrics,
		BatchSize:    a.config.RelayBatchSize,
		MaxAttempts:  a.config.RelayMaxAttempts,
		PollInterval: a.config.RelayPollInterval,
	})
}

func (a *application) Close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.logger.Sync()
}
