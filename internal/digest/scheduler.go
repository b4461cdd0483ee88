package digest

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// dispatchTimeout bounds one scheduled dispatch, mail handshake included.
const dispatchTimeout = 30 * time.Second

// Scheduler triggers a dispatch on a fixed interval. It implements the
// clear-after-send policy the Dispatcher itself deliberately does not: when
// a scheduled digest is delivered, the log is cleared so it does not grow
// unbounded across cycles.
type Scheduler struct {
	dispatcher *Dispatcher
	log        Log
	interval   time.Duration
	clearAfter bool
	logger     *zap.Logger

	done     chan struct{}
	stopped  chan struct{} // closed when the loop exits
	stopOnce sync.Once
}

// NewScheduler creates a stopped scheduler; call Start to begin ticking.
func NewScheduler(dispatcher *Dispatcher, log Log, interval time.Duration, clearAfter bool, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		log:        log,
		interval:   interval,
		clearAfter: clearAfter,
		logger:     logger,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start launches the ticking loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop ends the loop and waits for a tick in progress to finish. Safe to
// call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.stopped
	})
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	res, err := s.dispatcher.Dispatch(ctx, "scheduler", "interval")
	switch {
	case errors.Is(err, ErrNotConfigured):
		// Nothing to do until an operator configures a mail route.
		return
	case err != nil:
		s.logger.Warn("scheduled digest failed", zap.Error(err))
		return
	}

	if s.clearAfter && res.Delivered && res.RecordCount > 0 {
		if err := s.log.Clear(); err != nil {
			s.logger.Warn("post-digest clear failed", zap.Error(err))
		}
	}
}
