// Package refresher regenerates the build matrix report in the background.
package refresher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

// defaultInterval is used when no positive interval is configured.
const defaultInterval = 5 * time.Minute

// Refresher is a background service that periodically regenerates and
// publishes the report, keeping the latest snapshot in memory.
type Refresher interface {
	Start(ctx context.Context) error
	Stop() error

	// Latest returns the most recent successful snapshot, or nil before the
	// first pass completes.
	Latest() *runner.Snapshot
	// LastError returns the error of the most recent pass, if it failed.
	LastError() error
	// Refresh runs one pass synchronously.
	Refresh(ctx context.Context) error
}

// Compile-time interface check.
var _ Refresher = (*refresher)(nil)

type refresher struct {
	log      logrus.FieldLogger
	runner   runner.Runner
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	passMu   sync.Mutex

	latest  atomic.Pointer[runner.Snapshot]
	lastErr atomic.Pointer[error]
}

// NewRefresher creates a new background refresher.
func NewRefresher(
	log logrus.FieldLogger,
	r runner.Runner,
	interval time.Duration,
) Refresher {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &refresher{
		log:      log.WithField("component", "refresher"),
		runner:   r,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate pass and
// then ticks at the configured interval. The first pass is asynchronous so
// the caller is not blocked.
func (f *refresher) Start(ctx context.Context) error {
	f.log.WithField("interval", f.interval.String()).
		Info("Starting refresher")

	f.wg.Add(1)

	go func() {
		defer f.wg.Done()

		f.runPass(ctx)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.runPass(ctx)
			case <-f.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the refresher goroutine to stop and waits for it.
func (f *refresher) Stop() error {
	close(f.done)
	f.wg.Wait()

	f.log.Info("Refresher stopped")

	return nil
}

func (f *refresher) Latest() *runner.Snapshot {
	return f.latest.Load()
}

func (f *refresher) LastError() error {
	if err := f.lastErr.Load(); err != nil {
		return *err
	}

	return nil
}

func (f *refresher) Refresh(ctx context.Context) error {
	f.passMu.Lock()
	defer f.passMu.Unlock()

	snap, err := f.runner.Generate(ctx)
	if err != nil {
		f.lastErr.Store(&err)

		return err
	}

	if _, err := f.runner.Publish(ctx, snap); err != nil {
		// The in-memory snapshot is still served.
		f.log.WithError(err).Warn("Failed to publish report")
	}

	f.latest.Store(snap)
	f.lastErr.Store(nil)

	return nil
}

// runPass executes one refresh and logs its outcome.
func (f *refresher) runPass(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-f.done:
		return
	default:
	}

	start := time.Now()

	if err := f.Refresh(ctx); err != nil {
		f.log.WithError(err).Warn("Refresh pass failed")

		return
	}

	f.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Info("Refresh pass completed")
}
