package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	"github.com/cropsentinel/advisor/backend/internal/client/backend"
	smsclient "github.com/cropsentinel/advisor/backend/internal/client/sms"
	"github.com/cropsentinel/advisor/backend/internal/config"
	"github.com/cropsentinel/advisor/backend/internal/handler"
	"github.com/cropsentinel/advisor/backend/internal/i18n"
	"github.com/cropsentinel/advisor/backend/internal/service/ai"
	"github.com/cropsentinel/advisor/backend/internal/service/chat"
	"github.com/cropsentinel/advisor/backend/internal/service/sms"
	"github.com/cropsentinel/advisor/backend/internal/session"
	"github.com/cropsentinel/advisor/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	detector := language.NewHeuristic()

	aiService, err := newAIService(ctx, cfg.AI, logger)
	if err != nil {
		logger.Warn("continuing without AI functionality", zap.Error(err))
		aiService = nil
	}

	// Conversations reach the advisor in-process when a provider is configured,
	// otherwise over HTTP like any other client.
	var responder advisor.Responder
	if aiService != nil {
		responder = advisor.NewLocal(aiService, ai.ChatChannel(), logger)
	} else {
		responder = advisor.NewClient(cfg.Advisor.URL, cfg.Advisor.Timeout, logger)
	}

	db, err := store.OpenSQLite(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	chatService := chat.NewService(detector, responder, chat.Options{Greeting: cfg.Chat.Greeting, Logger: logger})

	var inbox *sms.Inbox
	if cfg.SMS.Enabled() {
		proxy := smsclient.NewClient(cfg.SMS.ProxyURL, cfg.Backend.Timeout)
		inbox = sms.NewInbox(proxy, responder, db, detector, sms.Options{MaxLength: cfg.SMS.MaxLength, Logger: logger})
		logger.Info("sms inbox enabled", zap.String("proxy", cfg.SMS.ProxyURL), zap.Duration("interval", cfg.SMS.PollInterval))
	} else {
		logger.Info("SMS_PROXY_URL not set, sms inbox disabled")
	}

	decoder := session.NewDecoder(cfg.Backend.JWTSecret)
	if !decoder.Verifies() {
		logger.Warn("JWT_SECRET not set, session tokens are decoded without signature verification")
	}

	router := handler.NewRouter(handler.Dependencies{
		AI:          aiService,
		Detector:    detector,
		Chat:        chatService,
		Inbox:       inbox,
		Backend:     backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout),
		Sessions:    decoder,
		Preferences: db,
		Catalog:     i18n.Default(),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("crop sentinel backend listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return chatService.Shutdown(shutdownCtx)
	})
	if inbox != nil {
		g.Go(func() error {
			return inbox.Poll(gctx, cfg.SMS.PollInterval)
		})
	}

	return g.Wait()
}

func newAIService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*ai.Service, error) {
	var generator ai.Generator
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		gen, err := ai.NewArkGenerator(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		generator = gen
	default:
		gen, err := ai.NewGeminiGenerator(ctx, ai.GeminiConfig{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, err
		}
		generator = gen
	}

	svc, err := ai.NewService(generator, ai.DefaultPromptBook(), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("AI service initialized", zap.String("provider", string(cfg.Provider)))
	return svc, nil
}
