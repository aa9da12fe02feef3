package activity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/cache"
)

// WarmerStatus is the warmer's state for the health endpoint
type WarmerStatus struct {
	LastRun  time.Time     `json:"lastRun"`
	Status   string        `json:"status"`
	Interval time.Duration `json:"interval"`
}

// Warmer recomputes the stats payload on a ticker and writes it to the
// cache, so requests rarely pay for a cold aggregation.
type Warmer struct {
	aggregator *Aggregator
	cache      *cache.Cache
	interval   time.Duration
	log        logrus.FieldLogger

	// Status tracking for health endpoint
	lastRun  time.Time
	status   string
	statusMu sync.RWMutex

	// Lifecycle
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWarmer creates a warmer. The interval should be shorter than the
// stats TTL for the cache to stay warm.
func NewWarmer(aggregator *Aggregator, c *cache.Cache, interval time.Duration, log logrus.FieldLogger) *Warmer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Warmer{
		aggregator: aggregator,
		cache:      c,
		interval:   interval,
		log:        log,
		status:     "idle",
		stopCh:     make(chan struct{}),
	}
}

// Run warms once immediately and then on every tick
func (w *Warmer) Run(ctx context.Context) {
	w.log.WithField("interval", w.interval).Info("Cache warmer starting")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.warm(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.warm(ctx)
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the warmer. Safe to call multiple times.
func (w *Warmer) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info("Cache warmer stopping...")
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("Cache warmer stopped")
	})
}

// Status returns the current warmer status
func (w *Warmer) Status() WarmerStatus {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()

	return WarmerStatus{
		LastRun:  w.lastRun,
		Status:   w.status,
		Interval: w.interval,
	}
}

func (w *Warmer) warm(ctx context.Context) {
	start := time.Now()
	status := "ok"

	payload, err := w.aggregator.ComputeStats(ctx)
	if err == nil {
		err = w.cache.Set(ctx, StatsCacheKey, payload, w.aggregator.StatsTTL())
	}
	if err != nil {
		w.log.WithError(err).Error("Failed to warm stats cache")
		status = "error"
	} else {
		w.log.WithField("duration", time.Since(start)).Debug("Stats cache warmed")
	}

	w.statusMu.Lock()
	w.lastRun = start
	w.status = status
	w.statusMu.Unlock()
}
