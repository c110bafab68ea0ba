package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lcx/statsview/config"
	"github.com/lcx/statsview/metric"
)

// ErrFlushThrottled is returned by Flush when manual flushes arrive faster
// than the configured budget allows.
var ErrFlushThrottled = errors.New("flush throttled")

// Options configures a Reader directly, without going through the config
// manager.
type Options struct {
	// Interval between automatic exports. Zero means
	// config.DefaultReportingInterval.
	Interval time.Duration

	// FlushPerSecond caps manual Flush calls. Zero means one per second.
	FlushPerSecond int
}

// Reader periodically reads the producer and fans the snapshot out to the
// configured exporters. The export loop is paced by a leaky bucket at one
// export per reporting interval; swapping the bucket hot-reloads the
// interval without restarting the loop. Manual flushes go through a token
// bucket so misbehaving callers cannot stampede the exporters.
type Reader struct {
	logger   *zap.Logger
	producer *metric.Producer

	mu        sync.RWMutex
	exporters map[string]Exporter
	pacer     ratelimit.Limiter
	interval  time.Duration

	flushLimiter atomic.Pointer[rate.Limiter]

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewReader creates a reader over the given producer. logger may be nil.
// The reader owns no exporters until AddExporter or setupExporters runs,
// and does not export until Start is called.
func NewReader(p *metric.Producer, opts Options, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = config.DefaultReportingInterval
	}
	flushPerSecond := opts.FlushPerSecond
	if flushPerSecond <= 0 {
		flushPerSecond = 1
	}
	r := &Reader{
		logger:    logger,
		producer:  p,
		exporters: make(map[string]Exporter),
		pacer:     ratelimit.New(1, ratelimit.Per(interval)),
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.flushLimiter.Store(rate.NewLimiter(rate.Limit(flushPerSecond), flushPerSecond))
	return r
}

// AddExporter attaches an exporter under the given name, replacing any
// previous exporter with that name.
func (r *Reader) AddExporter(name string, e Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[name] = e
}

// RemoveExporter detaches the named exporter. The caller remains
// responsible for destroying it.
func (r *Reader) RemoveExporter(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exporters, name)
}

// Start launches the background export loop. Safe to call once; further
// calls are no-ops.
func (r *Reader) Start() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.run()
	})
}

// Stop terminates the export loop and performs one final export so no
// recorded data is lost at shutdown.
func (r *Reader) Stop(ctx context.Context) {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	if r.started.Load() {
		<-r.done
	}
	r.export(ctx)
}

// Flush exports immediately, subject to the manual-flush budget.
func (r *Reader) Flush(ctx context.Context) error {
	if !r.flushLimiter.Load().Allow() {
		return ErrFlushThrottled
	}
	r.export(ctx)
	return nil
}

// SetReportingInterval swaps the pacing bucket; the new interval takes
// effect on the next loop iteration.
func (r *Reader) SetReportingInterval(d time.Duration) {
	if d <= 0 {
		d = config.DefaultReportingInterval
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d == r.interval {
		return
	}
	r.interval = d
	r.pacer = ratelimit.New(1, ratelimit.Per(d))
}

// SetFlushPerSecond swaps the manual-flush budget.
func (r *Reader) SetFlushPerSecond(n int) {
	if n <= 0 {
		n = 1
	}
	r.flushLimiter.Store(rate.NewLimiter(rate.Limit(n), n))
}

func (r *Reader) run() {
	defer close(r.done)

	// The pacer goroutine blocks in Take between slots, so the loop itself
	// stays selectable and Stop is prompt. After stop the pacer drains at
	// most one more slot before exiting.
	ticks := make(chan struct{})
	go func() {
		for {
			r.currentPacer().Take()
			select {
			case ticks <- struct{}{}:
			case <-r.stop:
				return
			}
		}
	}()

	for {
		select {
		case <-r.stop:
			return
		case <-ticks:
			r.export(context.Background())
		}
	}
}

func (r *Reader) currentPacer() ratelimit.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pacer
}

// export reads one snapshot and hands it to every exporter. Exporter
// failures are logged, never propagated: one broken backend must not
// starve the others.
func (r *Reader) export(ctx context.Context) {
	ms := r.producer.Read()

	r.mu.RLock()
	exporters := make(map[string]Exporter, len(r.exporters))
	for name, e := range r.exporters {
		exporters[name] = e
	}
	r.mu.RUnlock()

	for name, e := range exporters {
		if err := e.ExportMetrics(ctx, ms); err != nil {
			r.logger.Warn("metric export failed",
				zap.String("exporter", name), zap.Error(err))
		}
	}
}

// setupExporters instantiates all configured exporters with rollback: if
// any setup fails, every exporter created by this call is destroyed and the
// reader keeps its previous set.
func (r *Reader) setupExporters(cfgs map[string]map[string]any) error {
	created := make(map[string]Exporter, len(cfgs))
	for name, payload := range cfgs {
		e, err := setupByName(name, payload)
		if err != nil {
			r.rollbackExporters(created)
			return err
		}
		created[name] = e
		r.logger.Info("exporter setup success", zap.String("exporter", name))
	}

	r.mu.Lock()
	for name, e := range created {
		r.exporters[name] = e
	}
	r.mu.Unlock()
	return nil
}

func (r *Reader) rollbackExporters(created map[string]Exporter) {
	for name, e := range created {
		if f := getFactory(name); f != nil {
			if err := f.Destroy(e); err != nil {
				r.logger.Error("exporter rollback failed",
					zap.String("exporter", name), zap.Error(err))
			}
		}
	}
}

// OnConfigChanged implements config.ChangeListener. The reader reacts to
// changes of the "stats" configuration: reporting interval and flush budget
// apply immediately, exporters are reconciled against the new payload set.
// A reconciliation failure vetoes the change so the manager keeps the old
// configuration.
func (r *Reader) OnConfigChanged(name string, newConfig, oldConfig config.Config) error {
	if name != "stats" {
		return nil
	}
	cfg, ok := newConfig.(*config.StatsCfg)
	if !ok {
		return fmt.Errorf("invalid config type: expected *config.StatsCfg, got %T", newConfig)
	}
	if oldConfig == nil {
		// First load is handled by Init; nothing to reconcile.
		return nil
	}

	r.SetReportingInterval(cfg.Interval())
	r.SetFlushPerSecond(cfg.FlushPerSecond)
	return r.reconcileExporters(cfg.Exporters)
}

// reconcileExporters brings the running exporter set in line with the
// configured one: existing instances are reloaded in place (falling back to
// Destroy+Setup when the factory cannot reload), new ones are created,
// removed ones are destroyed. An exporter whose recreate fails is dropped
// without vetoing; only a failure to set up a newly configured exporter
// returns an error.
func (r *Reader) reconcileExporters(cfgs map[string]map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.exporters {
		payload, keep := cfgs[name]
		f := getFactory(name)
		if f == nil {
			continue
		}
		if !keep {
			if err := f.Destroy(e); err != nil {
				r.logger.Error("exporter destroy failed",
					zap.String("exporter", name), zap.Error(err))
			}
			delete(r.exporters, name)
			r.logger.Info("exporter removed", zap.String("exporter", name))
			continue
		}
		if err := f.Reload(e, payload); err != nil {
			r.logger.Warn("exporter reload failed, recreating",
				zap.String("exporter", name), zap.Error(err))
			if err := f.Destroy(e); err != nil {
				r.logger.Error("exporter destroy failed",
					zap.String("exporter", name), zap.Error(err))
			}
			replacement, err := f.Setup(payload)
			if err != nil {
				// The old instance is already destroyed, so a veto cannot
				// restore it. Drop the exporter and accept the change; the
				// next successful reload can bring it back.
				delete(r.exporters, name)
				r.logger.Error("exporter recreate failed, removing",
					zap.String("exporter", name), zap.Error(err))
				continue
			}
			r.exporters[name] = replacement
		}
	}

	for name, payload := range cfgs {
		if _, ok := r.exporters[name]; ok {
			continue
		}
		e, err := setupByName(name, payload)
		if err != nil {
			return err
		}
		r.exporters[name] = e
		r.logger.Info("exporter setup success", zap.String("exporter", name))
	}
	return nil
}
