package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/chat-assistant/internal/config"
	"github.com/zhouzirui/chat-assistant/internal/handler"
	"github.com/zhouzirui/chat-assistant/internal/logging"
	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/render"
	"github.com/zhouzirui/chat-assistant/internal/service/ai"
	"github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var envFile string

	run := func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), v, envFile)
	}

	root := &cobra.Command{
		Use:          "chat-assistant",
		Short:        "Web chat that forwards messages to a hosted LLM",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("addr", "", "listen port or host:port (overrides PORT)")
	flags.String("log-level", "", "zerolog level (overrides LOG_LEVEL)")
	_ = v.BindPFlag("PORT", flags.Lookup("addr"))
	_ = v.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  run,
	})

	return root
}

func serve(ctx context.Context, v *viper.Viper, envFile string) error {
	// Load .env file
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	logger := logging.Setup(cfg.Log, os.Stderr)
	if envErr != nil {
		logger.Warn().Err(envErr).Str("file", envFile).Msg("continuing with system environment variables only")
	}

	models := catalog.NewMemoryStore(catalog.FromIDs(cfg.AI.Models))

	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize completion provider")
		return err
	}
	if cfg.AI.HasCredential() {
		logger.Info().Str("provider", cfg.AI.Provider).Strs("models", cfg.AI.Models).Msg("completion provider ready")
	} else {
		logger.Warn().Str("provider", cfg.AI.Provider).Msg("provider credential missing, every chat turn will fail until it is set")
	}

	chatService := chat.NewService(cfg.Server.SessionIdleTTL)
	go chatService.RunJanitor(ctx, janitorInterval(cfg.Server.SessionIdleTTL))

	executor := turn.NewExecutor(chatService, completer, models, cfg.AI.ContextMode)

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	router := handler.NewRouter(handler.Deps{
		Logger:   logger,
		Models:   models,
		Chat:     chatService,
		Executor: executor,
		Renderer: renderer,
	})

	return startServer(ctx, cfg.Server, router)
}

func janitorInterval(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("chat assistant listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
