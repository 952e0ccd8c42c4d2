package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"valarify-bot/internal/client/resolver"
	"valarify-bot/internal/client/spotify"
	"valarify-bot/internal/config"
	"valarify-bot/internal/services/music"
	"valarify-bot/internal/transport/telegram"
	"valarify-bot/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:           "valarify-bot",
	Short:         "Telegram bot that turns song names into download links",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll Telegram and answer song requests",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	// Load .env when running locally; ignored if file is absent.
	_ = godotenv.Load()

	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() // best-effort flush

	if err := cfg.ValidateShell(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	bot, err := telegram.NewBot(cfg.BotToken, newPipeline(ctx, cfg, logger), logger)
	if err != nil {
		logger.Error("telegram init failed", zap.Error(err))
		return err
	}

	logger.Info("bot is starting", zap.String("username", bot.Username()))
	if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped with error", zap.Error(err))
		return err
	}

	logger.Info("bot stopped")
	return nil
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}

	return cfg, logger, nil
}

func newPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) *music.Service {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	searcher := spotify.NewClient(ctx, spotify.Options{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		HTTPClient:   httpClient,
	}, logger.Named("spotify"))
	res := resolver.NewClient(cfg.ResolverBaseURL, httpClient, logger.Named("resolver"))

	return music.NewService(searcher, res, cfg.MentionToken, logger.Named("router"))
}
