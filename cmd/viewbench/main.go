// Command viewbench measures post view counting under concurrent readers:
// advisory read-then-write, atomic increment, and the async recorder.
//
//	N=2000 CONC=16 go run ./cmd/viewbench
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func main() {
	cfg := must(config.Load())
	client := must(backend.New(cfg.Backend, backend.Options{Database: database.DefaultOptions()}))
	defer client.Close()
	ctx := context.Background()
	if err := client.Migrate(ctx); err != nil {
		panic(err)
	}

	N := envInt("N", 2000)
	CONC := envInt("CONC", 16)
	posts := repository.NewPostRepository(client.DB())

	seed := func() string {
		now := time.Now().UTC()
		p := &model.Post{ID: uuid.NewString(), UserID: "viewbench", Title: "viewbench", Content: "-", CreatedAt: now, UpdatedAt: now}
		if err := posts.Create(ctx, p); err != nil {
			panic(err)
		}
		return p.ID
	}
	views := func(id string) int64 { return must(posts.GetByID(ctx, id)).Views }

	// 并发执行 N 次 fn，返回每次耗时
	hammer := func(fn func() error) (lat []time.Duration, failed int) {
		var mu sync.Mutex
		var wg sync.WaitGroup
		jobs := make(chan struct{}, N)
		for i := 0; i < N; i++ {
			jobs <- struct{}{}
		}
		close(jobs)
		lat = make([]time.Duration, 0, N)
		for w := 0; w < CONC; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobs {
					st := time.Now()
					err := fn()
					d := time.Since(st)
					mu.Lock()
					lat = append(lat, d)
					if err != nil {
						failed++
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		return lat, failed
	}

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(float64(len(xs)) * p)
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}
	report := func(name, id string, lat []time.Duration, failed int) {
		got := views(id)
		fmt.Printf("%-9s views=%d/%d lost=%d failed=%d p50=%v p95=%v p99=%v\n",
			name, got, N, int64(N)-got, failed, pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	}

	fmt.Printf("N=%d CONC=%d backend=%s\n", N, CONC, client.DB().Dialector.Name())

	for _, mode := range []struct {
		name   string
		atomic bool
	}{{"advisory", false}, {"atomic", true}} {
		id := seed()
		counter := service.NewViewCounter(posts, mode.atomic)
		lat, failed := hammer(func() error { return counter.Increment(ctx, id) })
		report(mode.name, id, lat, failed)
	}

	// 异步：读取路径只入队，统计落地耗时
	id := seed()
	rec := service.NewViewRecorder(service.NewViewCounter(posts, cfg.Board.AtomicViews), N)
	stop := rec.Start(envInt("WORKERS", 4))
	lat, _ := hammer(func() error {
		if !rec.Enqueue(id) {
			return fmt.Errorf("queue full")
		}
		return nil
	})
	landed := make([]time.Duration, 0, N)
	failed := 0
	timeout := time.After(2 * time.Minute)
collect:
	for len(landed) < N {
		select {
		case r := <-rec.Results():
			landed = append(landed, r.Latency)
			if r.Err != nil {
				failed++
			}
		case <-timeout:
			break collect
		}
	}
	_ = stop(ctx)
	report("async", id, lat, failed)
	fmt.Printf("%-9s landing p50=%v p95=%v p99=%v\n", "", pct(landed, 0.50), pct(landed, 0.95), pct(landed, 0.99))
}
