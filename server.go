package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creaverse/api/handlers"
	"creaverse/api/middleware"
	"creaverse/api/routes"
	"creaverse/config"
	"creaverse/db"
	"creaverse/logging"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

const (
	serviceName                = "creaverse"
	eventsQueue                = "creaverse_dispatch"
	leaderboardReconcilePeriod = 5 * time.Minute
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	conf := config.AppConfig
	logging.Setup(conf.Logs.Level, conf.Logs.Format)
	if conf.Logs.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.Info("Starting server...", "driver", conf.Databases.Driver, "port", conf.Backend.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	// Redis и RabbitMQ опциональны: без них работаем на SQL и in-process событиях
	if err = services.InitRedis(ctx); err != nil {
		slog.Warn("Redis unavailable, continuing without cache", "error", err)
	}
	defer services.CloseRedis()

	var mq *services.RabbitMQ
	if conf.RabbitMQ.URL != "" {
		mq, err = services.ConnectRabbitMQ(conf.RabbitMQ.URL, services.EventsExchange)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, dispatching events in-process", "error", err)
		} else {
			defer mq.Close()
		}
	}

	rdb := services.RedisClient
	tokens := services.NewTokenService(conf.Auth.JWTSecret, conf.Auth.TokenTTL)
	ws := services.NewWSConnManager()
	notifications := services.NewNotificationService()
	rewards := services.NewRewardService(rdb)
	bus := services.NewEventBus(mq, services.NewDispatcher(notifications, rewards, ws))
	presence := services.NewPresenceService(rdb)
	posts := services.NewPostService(rdb, bus)
	messages := services.NewMessageService(bus)
	governance := services.NewGovernanceService(bus, conf.Governance.DefaultQuorum, conf.Governance.VotingPeriod)

	h := handlers.New(handlers.Deps{
		Profiles:      services.NewProfileService(tokens),
		Follows:       services.NewFollowService(bus, posts),
		Conversations: services.NewConversationService(presence),
		Messages:      messages,
		Presence:      presence,
		Posts:         posts,
		Categories:    services.NewCategoryService(),
		Notifications: notifications,
		Governance:    governance,
		Rewards:       rewards,
		Media: services.NewMediaService(services.MediaConfig{
			Endpoint:  conf.Media.Endpoint,
			Region:    conf.Media.Region,
			Bucket:    conf.Media.Bucket,
			AccessKey: conf.Media.AccessKey,
			SecretKey: conf.Media.SecretKey,
		}),
		Counters:    services.NewCounterService(messages, notifications),
		WS:          ws,
		ServiceName: serviceName,
	})

	// Фоновые воркеры
	if queue := posts.Queue(); queue != nil {
		queue.StartWorkers(ctx)
	}
	go governance.RunFinalizer(ctx, conf.Governance.FinalizerInterval)
	if rdb != nil {
		// набор мог отстать от SQL, пока Redis был недоступен
		if err := rewards.ReconcileLeaderboard(ctx); err != nil {
			slog.Warn("Failed to reconcile leaderboard on startup", "error", err)
		}
		go rewards.RunReconcileWorker(ctx, leaderboardReconcilePeriod)
	}
	if mq.Connected() {
		if err = bus.StartConsumer(ctx, eventsQueue); err != nil {
			slog.Error("Failed to start event consumer", "error", err)
		}
	}

	router := routes.NewRouter(h, tokens, middleware.NewUserRateLimiter(conf.Limits.MessageSendRPS))
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Backend.Host, conf.Backend.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()
	slog.Info("HTTP server listening", "addr", srv.Addr)

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
