package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/tastegraph/config"
	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/database"
	"github.com/d60-Lab/tastegraph/pkg/logger"
)

// 用 follows 表重算 profiles 上的冗余计数
func main() {
	userID := flag.String("user", "", "only reconcile this user")
	batch := flag.Int("batch", 500, "profiles per page")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg, model.All()...)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	profileRepo := repository.NewProfileRepository(db)
	follows := service.NewFollowService(repository.NewFollowRepository(db), profileRepo, nil, nil)
	ctx := context.Background()

	if *userID != "" {
		c, err := follows.ReconcileCounts(ctx, *userID)
		if err != nil {
			logger.Error("reconcile failed", zap.String("user", *userID), zap.Error(err))
			os.Exit(1)
		}
		logger.Info("reconciled", zap.String("user", *userID), zap.Int64("followers", c.Followers), zap.Int64("following", c.Following))
		return
	}

	start := time.Now()
	total, failed := 0, 0
	for offset := 0; ; offset += *batch {
		ids, err := profileRepo.ListUserIDs(ctx, offset, *batch)
		if err != nil {
			logger.Fatal("list profiles failed", zap.Int("offset", offset), zap.Error(err))
		}
		for _, id := range ids {
			if _, err := follows.ReconcileCounts(ctx, id); err != nil {
				failed++
				logger.Error("reconcile failed", zap.String("user", id), zap.Error(err))
				continue
			}
			total++
		}
		if len(ids) < *batch {
			break
		}
	}
	logger.Info("reconcile done", zap.Int("profiles", total), zap.Int("failed", failed), zap.Duration("took", time.Since(start)))
	if failed > 0 {
		os.Exit(1)
	}
}
