package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"reportdesk/config"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

const writeTimeout = 5 * time.Second

type Options struct {
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	ReplayBatch  int
}

func OptionsFromConfig(cfg config.AuditConfig) Options {
	return Options{
		QueueSize:    cfg.QueueSize,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		ReplayBatch:  cfg.ReplayBatch,
	}
}

type Stats struct {
	Queued       int
	Written      int64
	Failed       int64
	DeadLettered int64
	Replayed     int64
}

// Dispatcher writes audit entries after the primary mutation committed.
// Entries that cannot be written after MaxAttempts go to the dead-letter
// table and are re-driven by Replay.
type Dispatcher struct {
	store  store.AuditStore
	opts   Options
	logger *utils.Logger

	mu      sync.RWMutex
	queue   chan Entry
	started bool
	closed  bool
	wg      sync.WaitGroup

	written      atomic.Int64
	failed       atomic.Int64
	deadLettered atomic.Int64
	replayed     atomic.Int64
}

func NewDispatcher(st store.AuditStore, opts Options, logger *utils.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.ReplayBatch <= 0 {
		opts.ReplayBatch = 200
	}
	return &Dispatcher{
		store:  st,
		opts:   opts,
		logger: logger,
		queue:  make(chan Entry, opts.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range d.queue {
			d.write(e)
		}
	}()
}

func (d *Dispatcher) Record(_ context.Context, e Entry) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.failed.Add(1)
		d.logger.Warnf("audit dropped after shutdown: %s %s/%s", e.Action, e.TargetType, e.TargetID)
		return
	}
	select {
	case d.queue <- e:
	default:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deadLetter(e, 0, "queue full")
		}()
	}
}

// Stop closes the queue and waits until queued entries are written or
// dead-lettered.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	if !d.started {
		d.started = true
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for e := range d.queue {
				d.write(e)
			}
		}()
	}
	d.mu.Unlock()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) StatsSnapshot() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Queued:       len(d.queue),
		Written:      d.written.Load(),
		Failed:       d.failed.Load(),
		DeadLettered: d.deadLettered.Load(),
		Replayed:     d.replayed.Load(),
	}
}

func (d *Dispatcher) write(e Entry) {
	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		lastErr = d.store.Log(ctx, e.record())
		cancel()
		if lastErr == nil {
			d.written.Add(1)
			return
		}
		d.failed.Add(1)
		d.logger.Warnf("audit write %s attempt %d failed: %v", e.Action, attempt, lastErr)
		if attempt < d.opts.MaxAttempts {
			time.Sleep(d.opts.RetryBackoff * time.Duration(attempt))
		}
	}
	d.deadLetter(e, d.opts.MaxAttempts, lastErr.Error())
}

func (d *Dispatcher) deadLetter(e Entry, attempts int, reason string) {
	payload, err := json.Marshal(e)
	if err != nil {
		d.logger.Errorf("audit dead letter encode: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := d.store.AddDeadLetter(ctx, string(payload), attempts, reason); err != nil {
		d.logger.Errorf("audit entry lost (%s %s/%s): %v", e.Action, e.TargetType, e.TargetID, err)
		return
	}
	d.deadLettered.Add(1)
}

// Replay re-drives one batch of dead letters and returns how many were
// written.
func (d *Dispatcher) Replay(ctx context.Context) (int, error) {
	if d == nil {
		return 0, nil
	}
	items, err := d.store.ListDeadLetters(ctx, d.opts.ReplayBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item.Payload), &e); err != nil {
			d.logger.Errorf("audit dead letter %s undecodable: %v", item.ID, err)
			_ = d.store.BumpDeadLetter(ctx, item.ID, err.Error())
			continue
		}
		if err := d.store.Log(ctx, e.record()); err != nil {
			_ = d.store.BumpDeadLetter(ctx, item.ID, err.Error())
			continue
		}
		if err := d.store.DeleteDeadLetter(ctx, item.ID); err != nil {
			d.logger.Errorf("audit dead letter %s delete: %v", item.ID, err)
		}
		n++
	}
	d.replayed.Add(int64(n))
	return n, nil
}
