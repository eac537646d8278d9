// Command scorer scores a single transaction from stdin and prints the
// risk decision as JSON. It wires the scoring core the same way a host
// service would: config, logger, history store, model registry, service.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/internal/fraud"
	"github.com/richxcame/fraudscore/internal/history"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
	"github.com/richxcame/fraudscore/pkg/database"
	"github.com/richxcame/fraudscore/pkg/logger"
	"github.com/richxcame/fraudscore/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, closeStore := buildHistoryStore(cfg)
	defer closeStore()

	// Load classifier artifacts. A schema mismatch is fatal; an empty
	// registry only means rule-based fallback scoring.
	registry, err := model.LoadRegistry(cfg.Models.Dir)
	if err != nil {
		logger.Fatal("failed to load model registry", zap.Error(err))
	}

	service, err := fraud.NewService(store, registry, cfg)
	if err != nil {
		logger.Fatal("failed to build scoring service", zap.Error(err))
	}

	var tx fraud.Transaction
	if err := json.NewDecoder(os.Stdin).Decode(&tx); err != nil {
		logger.Fatal("failed to decode transaction from stdin", zap.Error(err))
	}

	decision, err := service.Score(context.Background(), &tx)
	if err != nil {
		logger.Fatal("scoring failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decision); err != nil {
		logger.Fatal("failed to encode decision", zap.Error(err))
	}
}

// buildHistoryStore selects the history backend: Redis first, Postgres when
// Redis is unreachable, and a permanently degraded store when neither is.
// An unreachable backend is never fatal; scoring falls back to safe
// defaults.
func buildHistoryStore(cfg *config.Config) (history.Store, func()) {
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err == nil {
		store := history.NewBreakerStore(
			history.NewRedisStore(redisClient, history.DefaultLookupTimeout),
			history.DefaultBreakerSettings("history-redis"),
		)
		return store, func() { redisClient.Close() }
	}
	logger.Warn("redis history store unreachable, trying postgres", zap.Error(err))

	pool, perr := database.NewPostgresPool(&cfg.Database)
	if perr == nil {
		store := history.NewBreakerStore(
			history.NewPostgresStore(pool, history.DefaultLookupTimeout),
			history.DefaultBreakerSettings("history-postgres"),
		)
		return store, func() { database.Close(pool) }
	}
	logger.Warn("no history backend reachable, scoring with degraded defaults", zap.Error(perr))

	down := history.NewMemoryStore()
	down.SetUnavailable(true)
	return down, func() {}
}
