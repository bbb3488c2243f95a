package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/store"
)

// RetentionService periodically prunes expired observations from the
// store. It runs independently of query-time windows; the store itself
// bounds what pruning may touch.
type RetentionService struct {
	store       store.ObservationStore
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	isRunning   bool
	lastPrune   time.Time
	prunedTotal int64
	logger      *logrus.Logger
}

// NewRetentionService creates a retention service pruning on the given
// interval.
func NewRetentionService(st store.ObservationStore, interval time.Duration, logger *logrus.Logger) *RetentionService {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logrus.New()
	}
	return &RetentionService{
		store:    st,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Start begins the periodic prune loop.
func (s *RetentionService) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("retention service is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.logger.WithField("interval", s.interval).Info("Starting retention service")

	s.wg.Add(1)
	go s.pruneLoop()
	return nil
}

// Stop gracefully shuts down the retention service.
func (s *RetentionService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("Stopping retention service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Retention service stopped")
}

// IsRunning reports whether the prune loop is active.
func (s *RetentionService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the time of the last prune and the total rows removed
// since start.
func (s *RetentionService) Status() (time.Time, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrune, s.prunedTotal
}

func (s *RetentionService) pruneLoop() {
	defer s.wg.Done()

	s.pruneOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pruneOnce()
		}
	}
}

func (s *RetentionService) pruneOnce() {
	removed, err := s.store.Prune(s.ctx, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("Observation prune failed")
		return
	}

	s.mu.Lock()
	s.lastPrune = time.Now()
	s.prunedTotal += removed
	s.mu.Unlock()

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Observation prune completed")
	}
}
