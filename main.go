package main

import (
	"context"
	"time"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
	"github.com/cppla/rewards/routes"
	"github.com/cppla/rewards/services"
	"github.com/cppla/rewards/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	shutdownTracing, err := utils.SetupTracing(context.Background(), cfg, "rewards")
	if err != nil {
		utils.Sugar.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			utils.Sugar.Warnf("tracing shutdown: %v", err)
		}
	}()

	db := config.InitDatabase(
		&models.User{}, &models.Balance{}, &models.LedgerEntry{},
		&models.FaucetStreak{}, &models.FaucetHistory{}, &models.FaucetClaim{},
		&models.RewardDefinition{}, &models.RewardLog{}, &models.UserReward{},
	)

	rc, err := config.LoadRewards(cfg.RewardsConfigPath)
	if err != nil {
		utils.Sugar.Fatalf("invalid reward config %s: %v", cfg.RewardsConfigPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.SeedCatalog(ctx, db, rc); err != nil {
		utils.Sugar.Fatalf("seed reward catalog: %v", err)
	}

	rewards := services.NewRewards(services.Options{
		DB:              db,
		Config:          rc,
		TxTimeout:       time.Duration(cfg.TxTimeoutSec) * time.Second,
		ConflictRetries: cfg.ConflictRetries,
		CatalogTTL:      time.Minute,
		Cache:           utils.NewRedisStatusCache(utils.GetRedis(), time.Duration(cfg.StatusCacheSec)*time.Second),
		Logger:          utils.Logger,
	})

	r := routes.SetupRouter(rewards)

	// Expired bonus grants are swept in the background
	utils.StartGrantSweeper(ctx, rewards, time.Duration(cfg.GrantSweepMinutes)*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, cancel); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
