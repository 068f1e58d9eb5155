package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/tastegraph/config"
	"github.com/d60-Lab/tastegraph/internal/cache"
	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/database"
)

// 对比关系状态与互关查询在有无 redis 缓存时的延迟
func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg, model.All()...))

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = cfg.Redis.Addr
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
	}

	userCount := envInt("USERS", 5000)
	requests := envInt("REQUESTS", 3000)

	followRepo := repository.NewFollowRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	fmt.Println("Setting up test data...")
	run := uuid.NewString()[:8]
	hub := model.NewProfile("hub-"+run, "hub_"+run)
	mustDo(db.Create(hub).Error)
	users := make([]*model.Profile, userCount)
	for i := range users {
		id := uuid.NewString()
		users[i] = model.NewProfile(id, fmt.Sprintf("user_%s_%d", run, i))
	}
	mustDo(db.CreateInBatches(users, 1000).Error)

	// 所有人关注 hub，hub 回关前一半，形成 userCount/2 个互关
	edges := make([]*model.Follow, 0, userCount+userCount/2)
	base := time.Now().UTC()
	for i, u := range users {
		at := base.Add(-time.Duration(i) * time.Second)
		edges = append(edges, &model.Follow{ID: uuid.NewString(), FollowerID: u.UserID, FollowedID: hub.UserID, Status: model.FollowStatusAccepted, CreatedAt: at, UpdatedAt: at})
		if i < userCount/2 {
			edges = append(edges, &model.Follow{ID: uuid.NewString(), FollowerID: hub.UserID, FollowedID: u.UserID, Status: model.FollowStatusAccepted, CreatedAt: at, UpdatedAt: at})
		}
	}
	mustDo(db.CreateInBatches(edges, 1000).Error)
	// 边是绕过仓储直接批量写入的，所有参与者的冗余计数都要重算
	for _, p := range append([]*model.Profile{hub}, users...) {
		_, _, err := followRepo.ReconcileCounts(ctx, p.UserID)
		mustDo(err)
	}
	fmt.Printf("Test data ready: %d users, %d edges\n", userCount, len(edges))

	plain := service.NewFollowService(followRepo, profileRepo, nil, nil)
	cached := service.NewFollowService(followRepo, profileRepo, cache.NewRelationCache(client, 10*time.Minute), nil)

	rnd := rand.New(rand.NewSource(42))
	viewers := make([]string, requests)
	for i := range viewers {
		viewers[i] = users[rnd.Intn(userCount)].UserID
	}

	status := func(svc service.FollowService) func(i int) error {
		return func(i int) error {
			_, err := svc.GetStatus(ctx, viewers[i], hub.UserID)
			return err
		}
	}
	mutual := func(svc service.FollowService) func(i int) error {
		return func(i int) error {
			_, err := svc.ListMutual(ctx, hub.UserID)
			return err
		}
	}
	mutualRuns := requests / 10

	client.FlushDB(ctx)
	rows := []struct {
		name string
		recs []time.Duration
	}{
		{"status no cache", runScenario(requests, false, status(plain))},
		{"status cache", runScenario(requests, true, status(cached))},
		{"mutual no cache", runScenario(mutualRuns, false, mutual(plain))},
		{"mutual cache", runScenario(mutualRuns, true, mutual(cached))},
	}

	keys, _ := client.Keys(ctx, "follow*").Result()
	info, _ := client.Info(ctx, "memory").Result()

	fmt.Printf("\nRelation reads (%d users, hub mutuals=%d)\n", userCount, userCount/2)
	for _, r := range rows {
		fmt.Printf("%-18s n=%d avg=%v p95=%v p99=%v\n", r.name, len(r.recs), avg(r.recs), pct(r.recs, 0.95), pct(r.recs, 0.99))
	}
	fmt.Printf("cache keys=%d mem=%s\n", len(keys), formatBytes(parseRedisMemory(info)))
}

func runScenario(n int, warm bool, call func(i int) error) []time.Duration {
	if warm {
		for i := 0; i < n; i++ {
			if err := call(i); err != nil {
				panic(err)
			}
		}
	}
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := call(i); err != nil {
			panic(err)
		}
		out = append(out, time.Since(start))
	}
	return out
}

// parseRedisMemory 从 INFO memory 中取 used_memory
func parseRedisMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
