/*
scheduler.go - Tax-table refresh scheduler

PURPOSE:
  Periodically reloads the withholding table so the first payroll request
  after a TTL expiry does not pay for the workbook parse, and so a broken
  upload is noticed in the logs before anyone computes a payslip.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each tick forces a reload; on failure the cache keeps serving the
    previous table and the error is logged and kept for LastRun
  - Loads once immediately on start

CONFIGURATION:
  - Interval: How often to reload (tax_table.refresh_interval)
  - Enabled:  Whether the scheduler is active (false when interval is 0)

USAGE:
  scheduler := NewTableRefreshScheduler(engine, interval, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshTaxTable endpoint (manual refresh)
  - withholding/cache.go: TableCache
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/withholding"
)

// TableRefresher is the part of engine.Engine the scheduler drives.
type TableRefresher interface {
	RefreshTaxTable(ctx context.Context, forced bool) (*withholding.Table, error)
}

// RefreshRun records the outcome of one scheduled reload.
type RefreshRun struct {
	At       time.Time
	Brackets int
	Err      error
}

// TableRefreshScheduler reloads the tax table on a fixed interval.
type TableRefreshScheduler struct {
	Refresher TableRefresher
	Interval  time.Duration
	Enabled   bool
	Timeout   time.Duration // per reload

	log     *logrus.Entry
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun *RefreshRun
}

// NewTableRefreshScheduler creates a scheduler. A non-positive interval
// leaves it disabled.
func NewTableRefreshScheduler(refresher TableRefresher, interval time.Duration, log *logrus.Entry) *TableRefreshScheduler {
	if log == nil {
		log = generic.NopLogger()
	}
	return &TableRefreshScheduler{
		Refresher: refresher,
		Interval:  interval,
		Enabled:   interval > 0,
		Timeout:   time.Minute,
		log:       log,
	}
}

// Start begins the scheduler.
func (s *TableRefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("tax table refresh disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.WithField("interval", s.Interval.String()).Info("tax table refresh started")
}

// Stop stops the scheduler and waits for an in-flight reload.
func (s *TableRefreshScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("tax table refresh stopped")
}

func (s *TableRefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow forces one reload (for testing/admin).
func (s *TableRefreshScheduler) RunNow() RefreshRun {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	run := RefreshRun{At: time.Now()}
	table, err := s.Refresher.RefreshTaxTable(ctx, true)
	if err != nil {
		run.Err = err
		s.log.WithError(err).Error("scheduled tax table reload failed; previous table kept")
	} else {
		run.Brackets = table.Size()
		s.log.WithField("brackets", run.Brackets).Debug("tax table reloaded")
	}

	s.mu.Lock()
	s.lastRun = &run
	s.mu.Unlock()
	return run
}

// LastRun returns the most recent reload, or nil before the first.
func (s *TableRefreshScheduler) LastRun() *RefreshRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}

// GetNextRunTime returns when the next scheduled reload will occur.
func (s *TableRefreshScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(s.Interval)
}
