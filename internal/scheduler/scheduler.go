package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elonfeng/newsnotifier/internal/store"
	"github.com/elonfeng/newsnotifier/pkg/source"
	"github.com/robfig/cron/v3"
)

// Defaults for the notification step of a cycle.
const (
	DefaultMaxNotify = 3
	DefaultDelay     = 2 * time.Second
	DefaultInterval  = 15 * time.Minute

	resultBuffer = 8
)

// ItemStore is the part of the store a refresh cycle needs.
type ItemStore interface {
	store.SettingsStore
	UpsertItems(ctx context.Context, items []source.Item) int
	Unread(ctx context.Context, limit int) []source.Item
}

// Dispatcher hands a batch of items to the notification layer.
type Dispatcher interface {
	Dispatch(items []source.Item, delay time.Duration)
}

// Options tunes a Refresher. A zero Interval or MaxNotify takes the package
// default; a zero Delay sends a batch without pauses.
type Options struct {
	Interval      time.Duration
	MaxNotify     int
	Delay         time.Duration
	NotifyDefault bool
}

// Result describes one finished refresh cycle.
type Result struct {
	Fetched  int       `json:"fetched"`
	Kept     int       `json:"kept"`
	Inserted int       `json:"inserted"`
	Notified int       `json:"notified"`
	Err      error     `json:"-"`
	At       time.Time `json:"at"`
}

// Refresher runs refresh cycles on a timer and on demand.
type Refresher struct {
	fetcher     *source.Fetcher
	categorizer *source.Categorizer
	store       ItemStore
	dispatcher  Dispatcher
	opts        Options
	logger      *slog.Logger

	cron     *cron.Cron
	mu       sync.Mutex
	entry    cron.EntryID
	interval time.Duration

	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// New creates a refresher. A nil dispatcher disables notifications.
func New(
	fetcher *source.Fetcher,
	categorizer *source.Categorizer,
	s ItemStore,
	dispatcher Dispatcher,
	opts Options,
	logger *slog.Logger,
) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if categorizer == nil {
		categorizer = source.NewCategorizer(nil, nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxNotify <= 0 {
		opts.MaxNotify = DefaultMaxNotify
	}
	if opts.Delay < 0 {
		opts.Delay = DefaultDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		fetcher:     fetcher,
		categorizer: categorizer,
		store:       s,
		dispatcher:  dispatcher,
		opts:        opts,
		logger:      logger,
		interval:    opts.Interval,
		results:     make(chan Result, resultBuffer),
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
	cl := cronLogger{logger: logger}
	r.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	r.entry = r.cron.Schedule(cron.Every(r.interval), cron.FuncJob(r.scheduled))
	return r
}

// Results delivers a Result for every finished cycle. When nobody reads
// it, results beyond the buffer are dropped.
func (r *Refresher) Results() <-chan Result {
	return r.results
}

// Interval returns the current timer period.
func (r *Refresher) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// Start begins firing the timer. It does not run a cycle immediately.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("refresh timer started", "interval", r.Interval())
}

// Stop halts the timer. Cycles already running finish on their own.
func (r *Refresher) Stop() {
	r.cron.Stop()
	r.logger.Info("refresh timer stopped")
}

// Reschedule replaces the timer period.
func (r *Refresher) Reschedule(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("reschedule refresh: invalid interval %s", d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d == r.interval {
		return nil
	}
	r.cron.Remove(r.entry)
	r.entry = r.cron.Schedule(cron.Every(d), cron.FuncJob(r.scheduled))
	r.interval = d
	r.logger.Info("refresh interval changed", "interval", d)
	return nil
}

// Trigger starts a cycle in the background and returns immediately.
// Cycles are not serialized against each other.
func (r *Refresher) Trigger() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RunOnce(r.ctx)
	}()
}

// Close stops the timer, cancels running cycles and waits for them.
func (r *Refresher) Close() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.wg.Wait()
}

func (r *Refresher) scheduled() {
	r.RunOnce(r.ctx)
}

// RunOnce fetches every source, stores new items and, when anything new
// arrived and notifications are on, hands the newest unread items to the
// dispatcher.
func (r *Refresher) RunOnce(ctx context.Context) Result {
	start := r.now()
	r.logger.Info("refresh started")

	res := Result{At: source.Naive(start)}

	raws := r.fetcher.FetchAll(ctx)
	res.Fetched = len(raws)

	items := source.MergeAndDedup(source.NormalizeAll(raws, r.categorizer, start))
	res.Kept = len(items)

	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("refresh cancelled: %w", err)
		r.publish(res)
		return res
	}

	res.Inserted = r.store.UpsertItems(ctx, items)

	if res.Inserted > 0 && r.dispatcher != nil &&
		store.Setting(ctx, r.store, store.KeyNotificationEnabled, r.opts.NotifyDefault) {
		unread := r.store.Unread(ctx, r.opts.MaxNotify)
		if len(unread) > 0 {
			r.dispatcher.Dispatch(unread, r.opts.Delay)
			res.Notified = len(unread)
		}
	}

	r.logger.Info("refresh done",
		"fetched", res.Fetched,
		"kept", res.Kept,
		"inserted", res.Inserted,
		"notified", res.Notified,
		"took", time.Since(start).Round(time.Millisecond),
	)
	r.publish(res)
	return res
}

func (r *Refresher) publish(res Result) {
	select {
	case r.results <- res:
	default:
		r.logger.Debug("refresh result dropped", "inserted", res.Inserted)
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
