package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/wiki-quiz-bot/internal/config"
	"github.com/aliskhannn/wiki-quiz-bot/internal/delivery/telegram"
	"github.com/aliskhannn/wiki-quiz-bot/internal/httpserver"
	"github.com/aliskhannn/wiki-quiz-bot/internal/infra/postgres"
	"github.com/aliskhannn/wiki-quiz-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/wiki-quiz-bot/internal/logger"
	"github.com/aliskhannn/wiki-quiz-bot/internal/quizapi"
	"github.com/aliskhannn/wiki-quiz-bot/internal/service"
	"github.com/aliskhannn/wiki-quiz-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zapLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zapLogger.Sync() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		zapLogger.Fatal("failed to create bot", zap.Error(err))
	}
	bot.Debug = cfg.BotDebug

	// Set commands.
	commands := []tgbotapi.BotCommand{
		{
			Command:     "start",
			Description: "Start the bot",
		},
		{
			Command:     "quiz",
			Description: "Generate a quiz (usage: /quiz https://en.wikipedia.org/wiki/Alan_Turing)",
		},
		{
			Command:     "history",
			Description: "Previously generated quizzes",
		},
		{
			Command:     "open",
			Description: "Open a quiz from history by id (usage: /open 12)",
		},
		{
			Command:     "help",
			Description: "Help",
		},
	}

	if _, err = bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		zapLogger.Warn("failed to set bot commands", zap.Error(err))
	}

	zapLogger.Info("authorized on account", zap.String("username", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := quizapi.New(quizapi.Options{
		BaseURL: cfg.QuizAPI.BaseURL,
		Timeout: cfg.QuizAPI.Timeout,
		Logger:  zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("failed to create quiz api client", zap.Error(err))
	}

	zapLogger.Info("quiz api client ready", zap.String("base_url", client.BaseURL()))

	chats := storage.NewChatViews(client)

	// The user registry is optional; without a database users are not recorded.
	var userRepo service.UserRepository
	if cfg.DB.Enabled() {
		dsn, err := cfg.DB.DSN()
		if err != nil {
			zapLogger.Fatal("invalid database config", zap.Error(err))
		}

		pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
			MaxConns:        int32(cfg.DB.MaxConnections),
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			zapLogger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool); err != nil {
			zapLogger.Fatal("failed to migrate database", zap.Error(err))
		}

		userRepo = repository.NewUserRepository(pool)
	} else {
		zapLogger.Info("DATABASE_URL not set, bot users are not recorded")
	}

	userService := service.NewUserService(userRepo, zapLogger)
	sweeper := service.NewSweeperService(chats, cfg.Sessions.SweepSchedule, cfg.Sessions.IdleTTL, zapLogger)
	server := httpserver.New(cfg.HTTP.Addr, zapLogger)

	handler := telegram.NewHandler(
		bot,
		zapLogger,
		userService,
		chats,
		cfg.Display.Location(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return handler.Run(gctx) })
	g.Go(func() error { return sweeper.Start(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		zapLogger.Error("bot stopped with error", zap.Error(err))
	}

	zapLogger.Info("shutdown complete")
}
