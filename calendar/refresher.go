/*
refresher.go - Background holiday cache warmer

PURPOSE:
  Keeps the holiday cache warm for the current and next calendar year so
  create-schedule requests rarely wait on the upstream API. A failed
  refresh only logs; the cached copy (if any) stays until its TTL.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Refreshes immediately on Start
  - Stop waits for the goroutine to exit

USAGE:
  r := calendar.NewRefresher(cached, log)
  r.Start()
  defer r.Stop()
*/
package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/warp/workforce-billing/logger"
)

// Refresher periodically refreshes a CachedProvider.
type Refresher struct {
	Provider *CachedProvider
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time

	log    *logger.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRefresher(p *CachedProvider, log *logger.Logger) *Refresher {
	return &Refresher{
		Provider: p,
		Interval: 6 * time.Hour,
		Timeout:  30 * time.Second,
		Now:      time.Now,
		log:      log,
	}
}

// Start begins refreshing. Calling Start twice is a no-op.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		return
	}
	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.wg.Add(1)

	go r.run(r.ticker, r.stop)

	r.log.Infow("holiday refresher started", "interval", r.Interval.String())
}

// Stop halts the refresher and waits for an in-flight refresh.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.wg.Wait()
	r.ticker = nil
	r.log.Infow("holiday refresher stopped")
}

func (r *Refresher) run(ticker *time.Ticker, stop chan struct{}) {
	defer r.wg.Done()

	r.RefreshNow()

	for {
		select {
		case <-ticker.C:
			r.RefreshNow()
		case <-stop:
			return
		}
	}
}

// RefreshNow refreshes the current and next year synchronously.
func (r *Refresher) RefreshNow() {
	year := r.Now().Year()
	for _, y := range []int{year, year + 1} {
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		err := r.Provider.Refresh(ctx, y)
		cancel()
		if err != nil {
			r.log.Warnw("holiday refresh failed", "year", y, "error", err)
			continue
		}
		r.log.Debugw("holiday cache refreshed", "year", y)
	}
}
