package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"gopkg.in/natefinch/lumberjack.v2"

	"answer-engine/handler"
	"answer-engine/internal/api"
	"answer-engine/internal/config"
	"answer-engine/internal/integrations/exa"
	"answer-engine/internal/integrations/openai"
	"answer-engine/internal/integrations/paramstore"
	"answer-engine/internal/reveal"
	"answer-engine/internal/usecase"
	"answer-engine/internal/view"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	closeLog := setupLogging(cfg)
	defer closeLog()
	logger := slog.Default()

	// ---- Credentials ----
	getter, err := credentialGetter(ctx, cfg)
	if err != nil {
		slog.Error("failed to create credential store", "err", err)
		os.Exit(1)
	}
	exaToken, err := paramstore.NewTokenSource(getter, cfg.ExaTokenParam())
	if err != nil {
		slog.Error("failed to create search token source", "err", err)
		os.Exit(1)
	}
	openaiToken, err := paramstore.NewTokenSource(getter, cfg.OpenAITokenParam())
	if err != nil {
		slog.Error("failed to create completion token source", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}
	exaClient, err := exa.NewClient(exaToken,
		exa.WithBaseURL(cfg.ExaBaseURL),
		exa.WithHTTPClient(httpClient),
		exa.WithNumResults(cfg.NumResults),
	)
	if err != nil {
		slog.Error("failed to create Exa client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(openaiToken,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := usecase.NewAnswerService(exaClient, openaiClient, cfg.OpenAIModel, cfg.TopK, cfg.MaxQueryLength, logger)
	if err != nil {
		slog.Error("failed to create answer service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(svc)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if cfg.InLambda {
		lambda.Start(h.Handle)
		return
	}

	// ---- HTTP server ----
	sessions := view.NewRegistry(svc, reveal.New(cfg.RevealDelay), cfg.SessionTTL, logger)
	srv, err := api.NewServer(cfg.Port, svc, h, sessions, logger)
	if err != nil {
		slog.Error("failed to create API server", "err", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("API server error", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "err", err)
	}
}

// credentialGetter reads API keys from SSM when a parameter prefix is
// configured and from the environment otherwise.
func credentialGetter(ctx context.Context, cfg config.Config) (paramstore.Getter, error) {
	if !cfg.UseParamStore {
		slog.Info("reading API keys from environment")
		return paramstore.NewEnvGetter(cfg.EnvTokenVars()), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return paramstore.New(awsssm.NewFromConfig(awsCfg))
}

// setupLogging installs the JSON logger. With LOG_FILE set, records also go
// to a size-rotated file; the returned func closes it.
func setupLogging(cfg config.Config) func() {
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeLog := func() {}
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
		out = io.MultiWriter(os.Stdout, file)
		closeLog = func() { _ = file.Close() }
	}
	logHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(logHandler))
	return closeLog
}
