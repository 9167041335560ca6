// Package scheduler owns the two periodic triggers of the automation:
// the post timer and the fixed fetch timer. Both hang off one
// run/stop toggle. Cycle callbacks run to completion before their
// timer re-arms, so the same cycle type never overlaps itself here.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"feedposter/internal/logger"
)

// FetchInterval is the fixed cadence of the scheduled fetch timer,
// independent of the configured post interval.
const FetchInterval = 5 * time.Minute

type Scheduler struct {
	postFn  func()
	fetchFn func()

	mu           sync.Mutex
	running      bool
	postInterval time.Duration
	countdown    string
	cron         *cron.Cron
	stopCh       chan struct{}
}

// New wires the cycle callbacks. The callbacks carry their own
// in-flight guards; the scheduler only decides when to invoke them.
func New(postFn, fetchFn func()) *Scheduler {
	return &Scheduler{
		postFn:  postFn,
		fetchFn: fetchFn,
	}
}

// Start arms both timers and immediately runs one fetch and one post
// cycle. Starting twice is a no-op.
func (s *Scheduler) Start(postInterval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if postInterval <= 0 {
		return fmt.Errorf("post interval must be positive, got %v", postInterval)
	}

	s.running = true
	s.postInterval = postInterval
	s.stopCh = make(chan struct{})

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", FetchInterval), s.fetchFn); err != nil {
		s.running = false
		return fmt.Errorf("arm fetch timer: %w", err)
	}
	s.cron.Start()
	go s.fetchFn()

	go s.postLoop(s.stopCh)

	logger.Info("automation started", "post_interval", postInterval, "fetch_interval", FetchInterval)
	return nil
}

// Stop cancels both timers and the countdown refresh. An in-flight
// cycle callback finishes on its own; Stop does not wait for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cron.Stop()
	close(s.stopCh)
	s.countdown = ""
	logger.Info("automation stopped")
}

// Running reports whether the timers are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Countdown returns the current "time until next post cycle" display,
// empty while stopped or mid-cycle.
func (s *Scheduler) Countdown() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown
}

// UpdateInterval changes the post interval; it takes effect when the
// timer next re-arms.
func (s *Scheduler) UpdateInterval(postInterval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if postInterval > 0 {
		s.postInterval = postInterval
	}
}

// postLoop runs a post cycle, then waits out the interval measured
// from the cycle's start. A slow cycle compresses the next wait; it
// never overlaps, because the wait only begins after the callback
// returns.
func (s *Scheduler) postLoop(stop <-chan struct{}) {
	for {
		start := time.Now()
		s.postFn()

		s.mu.Lock()
		next := start.Add(s.postInterval)
		s.mu.Unlock()

		// Refresh the countdown once a second until the interval runs
		// out, clamped to zero at expiry.
		for {
			remaining := time.Until(next)
			if remaining <= 0 {
				s.setCountdown(formatCountdown(0))
				break
			}
			s.setCountdown(formatCountdown(remaining))

			wait := time.Second
			if remaining < wait {
				wait = remaining
			}
			select {
			case <-stop:
				return
			case <-time.After(wait):
			}
		}

		select {
		case <-stop:
			return
		default:
		}
	}
}

func (s *Scheduler) setCountdown(text string) {
	s.mu.Lock()
	if s.running {
		s.countdown = text
	}
	s.mu.Unlock()
}

func formatCountdown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining.Round(time.Second) / time.Second)
	return fmt.Sprintf("next post check in %02d:%02d", total/60, total%60)
}
