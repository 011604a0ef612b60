/*
cache.go - TTL cache for the ingested withholding table

PURPOSE:
  The parsed table is the only process-wide state the engine owns. The
  cache holds it for a TTL and re-fetches from the RawTableSource on
  expiry or when a refresh is forced.

STATES:
  empty → populated → expired → populated
  Forced refresh re-parses regardless of state. Invalidate returns to empty.

CONCURRENCY:
  Reads of a fresh entry load an atomic pointer and take no lock.
  Population holds a mutex and re-checks the entry, so concurrent misses
  trigger a single fetch and parse.

SEE ALSO:
  - ingest.go: parsing
  - observability/metrics.go: CacheObserver implementation
*/
package withholding

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/generic"
)

// DefaultTTL is how long a parsed table is served before re-fetching.
const DefaultTTL = time.Hour

// CacheOutcome labels a cache access.
type CacheOutcome string

const (
	CacheHit     CacheOutcome = "hit"
	CacheMiss    CacheOutcome = "miss"
	CacheExpired CacheOutcome = "expired"
	CacheForced  CacheOutcome = "forced"
)

// CacheObserver receives cache and ingest events. Implementations must be
// safe for concurrent use.
type CacheObserver interface {
	CacheAccess(outcome CacheOutcome)
	IngestFinished(report *IngestReport, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CacheAccess(CacheOutcome)                             {}
func (nopObserver) IngestFinished(*IngestReport, time.Duration, error) {}

type cacheEntry struct {
	table    *Table
	report   *IngestReport
	loadedAt time.Time
}

// CacheStatus describes the current entry.
type CacheStatus struct {
	Populated bool
	LoadedAt  time.Time
	ExpiresAt time.Time
	Brackets  int
	Skipped   int
}

// TableCache serves the parsed withholding table.
type TableCache struct {
	source   RawTableSource
	ingestor *Ingestor
	ttl      time.Duration
	clock    generic.Clock
	observer CacheObserver
	log      *logrus.Entry

	entry atomic.Pointer[cacheEntry]
	mu    sync.Mutex
}

// CacheOption configures a TableCache.
type CacheOption func(*TableCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *TableCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clock generic.Clock) CacheOption {
	return func(c *TableCache) { c.clock = clock }
}

func WithObserver(o CacheObserver) CacheOption {
	return func(c *TableCache) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithIngestor(in *Ingestor) CacheOption {
	return func(c *TableCache) { c.ingestor = in }
}

func WithLogger(log *logrus.Entry) CacheOption {
	return func(c *TableCache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewTableCache creates an empty cache over source.
func NewTableCache(source RawTableSource, opts ...CacheOption) *TableCache {
	c := &TableCache{
		source:   source,
		ingestor: &Ingestor{},
		ttl:      DefaultTTL,
		clock:    generic.SystemClock{},
		observer: nopObserver{},
		log:      generic.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached table, populating it on a miss or expiry. forced
// bypasses the cache and re-parses.
func (c *TableCache) Get(ctx context.Context, forced bool) (*Table, error) {
	if !forced {
		if e := c.entry.Load(); e != nil && c.fresh(e) {
			c.observer.CacheAccess(CacheHit)
			return e.table, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := CacheForced
	if !forced {
		e := c.entry.Load()
		switch {
		case e == nil:
			outcome = CacheMiss
		case c.fresh(e):
			// another goroutine populated it while we waited
			c.observer.CacheAccess(CacheHit)
			return e.table, nil
		default:
			outcome = CacheExpired
		}
	}
	c.observer.CacheAccess(outcome)
	return c.load(ctx, outcome)
}

// Invalidate drops the cached entry.
func (c *TableCache) Invalidate() {
	c.entry.Store(nil)
}

// Status reports the cached entry without populating it.
func (c *TableCache) Status() CacheStatus {
	e := c.entry.Load()
	if e == nil {
		return CacheStatus{}
	}
	return CacheStatus{
		Populated: true,
		LoadedAt:  e.loadedAt,
		ExpiresAt: e.loadedAt.Add(c.ttl),
		Brackets:  e.table.Size(),
		Skipped:   len(e.report.Skipped),
	}
}

func (c *TableCache) fresh(e *cacheEntry) bool {
	return c.clock.Now().Before(e.loadedAt.Add(c.ttl))
}

// load must be called with mu held. A failed load leaves the previous entry
// in place so a broken source never erases a good table.
func (c *TableCache) load(ctx context.Context, outcome CacheOutcome) (*Table, error) {
	if c.source == nil {
		return nil, generic.ErrSourceRequired
	}
	started := c.clock.Now()
	grid, err := c.source.FetchGrid(ctx)
	if err != nil {
		c.observer.IngestFinished(nil, c.clock.Now().Sub(started), err)
		c.log.WithError(err).Warn("tax table fetch failed")
		return nil, err
	}
	table, report, err := c.ingestor.IngestWithReport(grid)
	c.observer.IngestFinished(report, c.clock.Now().Sub(started), err)
	if err != nil {
		c.log.WithError(err).WithField("rows", len(grid)).Error("tax table ingest failed")
		return nil, err
	}

	c.entry.Store(&cacheEntry{table: table, report: report, loadedAt: c.clock.Now()})
	c.log.WithFields(logrus.Fields{
		"outcome":  outcome,
		"brackets": table.Size(),
		"skipped":  len(report.Skipped),
	}).Info("tax table loaded")
	return table, nil
}
