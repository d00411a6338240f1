// Package main is the entry point for the FinTracker market data service.
// The application keeps cached stock prices and dividends fresh on demand:
// a stock view triggers staleness checks against the trading calendar and
// only fetches from the upstream providers when the cache is out of date.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/fintracker/internal/clients/brapi"
	"github.com/aristath/fintracker/internal/clients/yahoo"
	"github.com/aristath/fintracker/internal/config"
	"github.com/aristath/fintracker/internal/database"
	"github.com/aristath/fintracker/internal/modules/notes"
	noteshandlers "github.com/aristath/fintracker/internal/modules/notes/handlers"
	"github.com/aristath/fintracker/internal/modules/stocks"
	stockshandlers "github.com/aristath/fintracker/internal/modules/stocks/handlers"
	"github.com/aristath/fintracker/internal/modules/watchlist"
	watchlisthandlers "github.com/aristath/fintracker/internal/modules/watchlist/handlers"
	"github.com/aristath/fintracker/internal/server"
	"github.com/aristath/fintracker/internal/services"
	"github.com/aristath/fintracker/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting FinTracker")

	// Market database holds stocks, cached prices, cached dividends,
	// watchlist and portfolio memberships.
	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	if err := marketDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate market database")
	}

	// Repositories
	stockRepo := stocks.NewStockRepository(marketDB.Conn(), log)
	priceRepo := stocks.NewPriceRepository(marketDB.Conn(), log)
	dividendRepo := stocks.NewDividendRepository(marketDB.Conn(), log)
	watchlistRepo := watchlist.NewRepository(marketDB.Conn(), log)
	notesRepo := notes.NewRepository(marketDB.Conn(), log)

	// Upstream market data clients
	brapiClient := brapi.NewClient(cfg.BrapiBaseURL, cfg.BrapiToken, log)
	yahooClient := yahoo.NewClient(cfg.YahooBaseURL, log)

	// Services
	detector := services.NewUpdateDetectionService(log)
	orchestrator := services.NewOrchestrationService(
		stockRepo,
		priceRepo,
		dividendRepo,
		brapiClient,
		yahooClient,
		detector,
		log,
	)

	// HTTP handlers
	stocksHandlers := stockshandlers.NewHandler(orchestrator, stockRepo, priceRepo, dividendRepo, log)
	watchlistHandlers := watchlisthandlers.NewHandler(watchlistRepo, priceRepo, log)
	notesHandlers := noteshandlers.NewHandler(notesRepo, log)

	srv := server.New(server.Config{
		Log:               log,
		MarketDB:          marketDB,
		Config:            cfg,
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		StocksHandlers:    stocksHandlers,
		WatchlistHandlers: watchlistHandlers,
		NotesHandlers:     notesHandlers,
	})

	// Start server in goroutine so the main thread can wait for signals
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Give in-flight requests up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
