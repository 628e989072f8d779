package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/match"
)

// StatsReporter periodically logs matchmaking counts.
//
// Invariant: at most one report is logged per interval.
type StatsReporter struct {
	interval time.Duration
	registry *match.Registry
	logger   *zap.Logger

	quit     chan struct{}
	stopOnce sync.Once
}

// NewStatsReporter returns a reporter that logs registry stats every interval.
//
// Precondition: interval must be > 0; registry and logger must be non-nil.
func NewStatsReporter(interval time.Duration, registry *match.Registry, logger *zap.Logger) *StatsReporter {
	if interval <= 0 {
		panic("gameserver.NewStatsReporter: interval must be > 0")
	}
	return &StatsReporter{
		interval: interval,
		registry: registry,
		logger:   logger,
		quit:     make(chan struct{}),
	}
}

// Start logs a report every interval until Stop is called.
func (s *StatsReporter) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return nil
		case <-ticker.C:
			s.Report()
		}
	}
}

// Stop ends the reporting loop. Safe to call more than once.
func (s *StatsReporter) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Report logs the current counts and returns them.
func (s *StatsReporter) Report() match.Stats {
	stats := s.registry.Stats()
	s.logger.Info("matchmaking stats",
		zap.Int("waiting_rooms", stats.Waiting),
		zap.Int("active_games", stats.Active),
		zap.Int("games_matched", stats.Matched),
	)
	return stats
}
