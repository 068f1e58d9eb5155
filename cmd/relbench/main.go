package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/tastegraph/config"
	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/internal/service"
	"github.com/d60-Lab/tastegraph/pkg/database"
)

// 压测关注写路径：N 个用户并发关注同一个公开账号，再关注一个私密账号并逐个通过
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg, model.All()...))

	followRepo := repository.NewFollowRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	notifier := service.NewNotifier(notifRepo, profileRepo, 100000)
	stop := notifier.Start(8)
	follows := service.NewFollowService(followRepo, profileRepo, nil, notifier)

	ctx := context.Background()
	N := envInt("N", 10000)
	CONC := envInt("CONC", 8)
	PAGE := envInt("PAGE", 50)

	run := uuid.New().String()[:8]
	celeb := model.NewProfile("celeb-"+run, "celeb_"+run)
	locked := model.NewProfile("locked-"+run, "locked_"+run)
	locked.IsPrivate = true
	mustDo(db.Create([]*model.Profile{celeb, locked}).Error)

	users := make([]*model.Profile, N)
	for i := range users {
		id := uuid.New().String()
		users[i] = model.NewProfile(id, "u"+id[:12])
	}
	mustDo(db.CreateInBatches(users, 1000).Error)

	maxQ := 0
	quitSample := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if q := notifier.QueueLen(); q > maxQ {
					maxQ = q
				}
			case <-quitSample:
				return
			}
		}
	}()

	direct, directDur, directErrs := parallel(N, CONC, func(i int) error {
		_, err := follows.Follow(ctx, users[i].UserID, celeb.UserID)
		return err
	})
	requested, requestDur, requestErrs := parallel(N, CONC, func(i int) error {
		_, err := follows.Follow(ctx, users[i].UserID, locked.UserID)
		return err
	})

	pending := must(follows.ListPendingRequests(ctx, locked.UserID))
	accepted, acceptDur, acceptErrs := parallel(len(pending), CONC, func(i int) error {
		_, err := follows.RespondToRequest(ctx, locked.UserID, pending[i].RequestID, true)
		return err
	})
	close(quitSample)

	q0 := time.Now()
	_ = must(follows.ListFollowers(ctx, celeb.UserID, users[0].UserID, 1, PAGE))
	listDur := time.Since(q0)

	drainStart := time.Now()
	_ = stop(context.Background())
	drainDur := time.Since(drainStart)

	// 计数应与边一致
	c := must(follows.ReconcileCounts(ctx, locked.UserID))

	fmt.Printf("N=%d, CONC=%d, PAGE=%d\n", N, CONC, PAGE)
	report("follow public", direct, directDur, directErrs)
	report("follow private", requested, requestDur, requestErrs)
	report("accept request", accepted, acceptDur, acceptErrs)
	fmt.Printf("list followers(%d) with viewer status: %v\n", PAGE, listDur)
	fmt.Printf("notify queue max=%d drain=%v\n", maxQ, drainDur)
	fmt.Printf("private account followers after reconcile: %d (pending seen %d)\n", c.Followers, len(pending))
}

func parallel(n, workers int, op func(i int) error) ([]time.Duration, time.Duration, int) {
	if workers > n {
		workers = n
	}
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	type result struct {
		d   time.Duration
		err error
	}
	out := make(chan result, n)
	t0 := time.Now()
	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := range feed {
				st := time.Now()
				err := op(i)
				out <- result{d: time.Since(st), err: err}
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	total := time.Since(t0)
	close(out)

	recs := make([]time.Duration, 0, n)
	errs := 0
	for r := range out {
		recs = append(recs, r.d)
		if r.err != nil {
			errs++
		}
	}
	return recs, total, errs
}

func report(name string, recs []time.Duration, total time.Duration, errs int) {
	if len(recs) == 0 {
		fmt.Printf("%-16s no samples\n", name)
		return
	}
	fmt.Printf("%-16s total=%v per_op=%v p50=%v p95=%v p99=%v errors=%d\n",
		name, total, total/time.Duration(len(recs)), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99), errs)
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
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
