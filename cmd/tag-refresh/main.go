package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"bitbucket.org/grsnucleo/ocupacional_backend/models"
	"bitbucket.org/grsnucleo/ocupacional_backend/socsync"
	"github.com/bsm/redislock"
)

// One-shot tag sweep for cron. Re-derives the release tag of every exam
// request from today's date, across all companies. A redis lock keeps
// overlapping cron firings from sweeping twice.
func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	locker := config.GetRedisLock()
	if locker == nil {
		fmt.Fprintln(os.Stderr, "redis lock not initialized")
		os.Exit(1)
	}
	lock, err := locker.Obtain(ctx, "soc-sync:tag-refresh", 10*time.Minute, nil)
	if err == redislock.ErrNotObtained {
		fmt.Println("another tag refresh is running, skipping")
		return
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to obtain tag refresh lock: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lock.Release(ctx) }()

	refresher := socsync.NewRefresher(socsync.NewGormRequestStore(db))
	affected, err := refresher.RefreshAllTags(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tag refresh failed after %d affected rows: %v\n", affected, err)
		os.Exit(1)
	}
	fmt.Printf("Tag refresh finished, %d affected rows across statements\n", affected)
}
