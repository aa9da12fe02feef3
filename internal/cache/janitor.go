package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirer is a backend that can purge its expired entries
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired entries so the backend does not grow
// without bound. Reads already ignore expired entries.
type Janitor struct {
	store    Expirer
	interval time.Duration
	log      logrus.FieldLogger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor; call Run to start it and Stop on shutdown
func NewJanitor(store Expirer, interval time.Duration, log logrus.FieldLogger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		store:    store,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the purge loop in the background
func (j *Janitor) Run(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.log.WithError(err).Warn("Cache sweep failed")
		return
	}
	if removed > 0 {
		j.log.WithField("removed", removed).Debug("Cache sweep removed expired entries")
	}
}

// Stop ends the purge loop. Safe to call multiple times.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
		j.wg.Wait()
	})
}
