package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"timercard/internal/api"
	"timercard/internal/card"
	"timercard/internal/clock"
	"timercard/internal/config"
	"timercard/internal/ha"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	haURL := os.Getenv("HA_URL")
	haToken := os.Getenv("HA_TOKEN")
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/cards.yaml"
	}

	if haURL == "" || haToken == "" {
		logger.Fatal("HA_URL and HA_TOKEN environment variables must be set")
	}

	daemonCfg, err := config.NewLoader(configPath, logger).Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting timer card controller",
		zap.String("url", haURL),
		zap.Int("cards", len(daemonCfg.Cards)))

	client := ha.NewClient(haURL, haToken, logger)
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to hub", zap.Error(err))
	}
	defer client.Disconnect()

	events := &card.Events{
		ConfigChanged: func(name string, cfg card.Config) {
			logger.Info("Card configuration changed", zap.String("card", name))
		},
		ShowDetails: func(name, entityID string) {
			logger.Info("Show details requested",
				zap.String("card", name),
				zap.String("entity_id", entityID))
		},
	}

	clk := clock.NewRealClock()
	cards := make([]*card.Card, 0, len(daemonCfg.Cards))
	for _, entry := range daemonCfg.Cards {
		def := card.Default.Get(entry.Config.Type)
		if def == nil {
			def = card.Default.Get(card.TypeName)
		}

		c, err := def.Factory(entry.Name, entry.Config, client, clk, logger, events)
		if err != nil {
			logger.Fatal("Failed to create card",
				zap.String("card", entry.Name),
				zap.Error(err))
		}
		if err := c.Start(); err != nil {
			logger.Fatal("Failed to start card",
				zap.String("card", entry.Name),
				zap.Error(err))
		}
		cards = append(cards, c)
	}

	server := api.NewServer(cards, logger, daemonCfg.API.Port)
	server.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}

	for _, c := range cards {
		c.Stop()
	}
}
