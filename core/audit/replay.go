package audit

import (
	"context"
	"sync"
	"time"

	"reportdesk/core/utils"

	"github.com/robfig/cron/v3"
)

// ReplayScheduler runs Dispatcher.Replay on a cron schedule.
type ReplayScheduler struct {
	dispatcher *Dispatcher
	cron       *cron.Cron
	logger     *utils.Logger

	mu      sync.Mutex
	running bool
}

func NewReplayScheduler(d *Dispatcher, spec string, logger *utils.Logger) (*ReplayScheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &ReplayScheduler{dispatcher: d, cron: c, logger: logger}
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ReplayScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.dispatcher.Replay(ctx)
	if err != nil {
		s.logger.Errorf("audit replay: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("audit replay wrote %d dead letters", n)
	}
}

func (s *ReplayScheduler) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

func (s *ReplayScheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
