package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

const cleanupLockName = "attempt-cleanup"

// CleanupScheduler periodically purges authorization attempts that were
// started but never completed.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance runs each cycle.
type CleanupScheduler struct {
	attempts driven.AuthorizationAttemptStore
	lock     driven.DistributedLock
	logger   *slog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	lockTTL  time.Duration
}

// CleanupSchedulerConfig holds configuration for the cleanup scheduler.
type CleanupSchedulerConfig struct {
	Attempts driven.AuthorizationAttemptStore
	Lock     driven.DistributedLock // Optional
	Logger   *slog.Logger
	Interval time.Duration // default: 1m
	LockTTL  time.Duration // default: 2x Interval
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(cfg CleanupSchedulerConfig) *CleanupScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &CleanupScheduler{
		attempts: cfg.Attempts,
		lock:     cfg.Lock,
		logger:   logger,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Start begins the cleanup loop.
// It runs until Stop is called or context is cancelled.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("cleanup scheduler starting", "interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the loop and waits for the current cycle.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("cleanup scheduler stopped")
}

// Running reports whether the loop is active.
func (s *CleanupScheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *CleanupScheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup cycle. It reports whether the cycle
// actually ran; false means the lock was unavailable or the store failed.
func (s *CleanupScheduler) RunOnce(ctx context.Context) bool {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, cleanupLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire cleanup lock", "error", err)
			return false
		}
		if !acquired {
			s.logger.Debug("cleanup lock held by another instance, skipping cycle")
			return false
		}
		defer func() {
			if err := s.lock.Release(ctx, cleanupLockName); err != nil {
				s.logger.Warn("failed to release cleanup lock", "error", err)
			}
		}()
	}

	if err := s.attempts.Cleanup(ctx); err != nil {
		s.logger.Error("failed to clean up expired attempts", "error", err)
		return false
	}

	s.logger.Debug("expired authorization attempts cleaned up")
	return true
}
