package utils

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"qbank/cache"
	"qbank/config"
	"qbank/practice"
	"qbank/stats"
	"qbank/store"
)

// logScheduler logs scheduler events with timestamp
func logScheduler(message string) {
	log.Printf("[QBANK-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

const jobTimeout = 30 * time.Second

// StartUsageFlushScheduler periodically drains the in-memory usage counters
// into the durable rows
func StartUsageFlushScheduler(c *cron.Cron, spec string, agg *stats.Aggregator, st *store.Store) {
	c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := agg.Flush(ctx, st); err != nil {
			logScheduler("Usage flush failed: " + err.Error())
		}
	})
	logScheduler("Usage flush scheduler started - " + spec)
}

// StartSessionReaperScheduler abandons sessions idle past the configured
// window, both in the registry and in the durable rows
func StartSessionReaperScheduler(c *cron.Cron, spec string, staleAfter time.Duration, manager *practice.Manager, st *store.Store) {
	c.AddFunc(spec, func() {
		cutoff := time.Now().Add(-staleAfter)
		live := manager.ReapStale(cutoff)

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		durable, err := st.AbandonStaleSessions(ctx, cutoff)
		if err != nil {
			logScheduler("Session reaper failed on durable rows: " + err.Error())
			return
		}
		if live > 0 || durable > 0 {
			logScheduler("Session reaper abandoned " + strconv.Itoa(live) + " live and " + strconv.Itoa(int(durable)) + " durable session(s)")
		}
	})
	logScheduler("Session reaper scheduler started - " + spec)
}

// StartCacheSweepScheduler evicts expired local-tier entries so entries
// that are never read again do not linger until LRU pressure
func StartCacheSweepScheduler(c *cron.Cron, hybrid *cache.HybridCache) {
	c.AddFunc("@every 10m", func() {
		if swept := hybrid.SweepLocal(); swept > 0 {
			logScheduler("Cache sweep dropped " + strconv.Itoa(swept) + " expired local entries")
		}
	})
	logScheduler("Cache sweep scheduler started - runs every 10 minutes")
}

// InitializeSchedulers wires all background jobs and starts the cron runner
func InitializeSchedulers(cfg *config.Config, hybrid *cache.HybridCache, manager *practice.Manager, agg *stats.Aggregator, st *store.Store) *cron.Cron {
	logScheduler("Initializing background schedulers...")

	c := cron.New()

	StartUsageFlushScheduler(c, cfg.UsageFlushSpec, agg, st)
	StartSessionReaperScheduler(c, cfg.ReaperSpec, time.Duration(cfg.SessionStaleMins)*time.Minute, manager, st)
	StartCacheSweepScheduler(c, hybrid)

	c.Start()

	logScheduler("All schedulers initialized successfully")
	return c
}
