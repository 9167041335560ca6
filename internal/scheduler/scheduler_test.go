package scheduler

import (
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"feedposter/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartRunsBothCyclesImmediately(t *testing.T) {
	var posts, fetches atomic.Int32
	s := New(func() { posts.Add(1) }, func() { fetches.Add(1) })

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, time.Second, func() bool {
		return posts.Load() >= 1 && fetches.Load() >= 1
	})
}

func TestPostLoopRepeats(t *testing.T) {
	var posts atomic.Int32
	s := New(func() { posts.Add(1) }, func() {})

	if err := s.Start(30 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool { return posts.Load() >= 3 })
}

func TestStopHaltsPostLoop(t *testing.T) {
	var posts atomic.Int32
	s := New(func() { posts.Add(1) }, func() {})

	if err := s.Start(20 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return posts.Load() >= 1 })
	s.Stop()

	if s.Running() {
		t.Error("Running() = true after Stop")
	}
	settled := posts.Load()
	time.Sleep(100 * time.Millisecond)
	if got := posts.Load(); got > settled+1 {
		t.Errorf("post cycles kept firing after Stop: %d -> %d", settled, got)
	}
	if s.Countdown() != "" {
		t.Errorf("Countdown() = %q after Stop, want empty", s.Countdown())
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	var posts atomic.Int32
	s := New(func() { posts.Add(1) }, func() {})

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return posts.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)
	if got := posts.Load(); got != 1 {
		t.Errorf("post cycles = %d, want 1 (second Start must not re-arm)", got)
	}
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	s := New(func() {}, func() {})
	if err := s.Start(0); err == nil {
		t.Error("expected error for zero interval")
	}
	if s.Running() {
		t.Error("scheduler must not be running after a failed Start")
	}
}

func TestCountdownFormat(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      string
	}{
		{0, "next post check in 00:00"},
		{-time.Second, "next post check in 00:00"},
		{59 * time.Second, "next post check in 00:59"},
		{90 * time.Second, "next post check in 01:30"},
		{30 * time.Minute, "next post check in 30:00"},
	}
	for _, tt := range tests {
		if got := formatCountdown(tt.remaining); got != tt.want {
			t.Errorf("formatCountdown(%v) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func TestCountdownDisplayWhileRunning(t *testing.T) {
	s := New(func() {}, func() {})
	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, time.Second, func() bool {
		return strings.HasPrefix(s.Countdown(), "next post check in ")
	})
}

func TestUpdateIntervalIgnoresNonPositive(t *testing.T) {
	s := New(func() {}, func() {})
	s.postInterval = time.Hour
	s.UpdateInterval(0)
	if s.postInterval != time.Hour {
		t.Error("zero interval should be ignored")
	}
	s.UpdateInterval(10 * time.Minute)
	if s.postInterval != 10*time.Minute {
		t.Errorf("postInterval = %v", s.postInterval)
	}
}
