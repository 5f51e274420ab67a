package service

import (
	"context"

	"todoapp/internal/clock"
	"todoapp/internal/domain/models"
	"todoapp/internal/stats"

	"github.com/rs/zerolog/log"
)

// StatsCache stores statistics snapshots per owner under a generation
// number. Get reports the current generation with a nil snapshot on a miss;
// Set stores a snapshot under the generation read before the tasks were
// listed, and Invalidate starts a new generation so late writes never match.
type StatsCache interface {
	Get(ctx context.Context, ownerID string) (*stats.Snapshot, int64, error)
	Set(ctx context.Context, ownerID string, version int64, s stats.Snapshot) error
	Invalidate(ctx context.Context, ownerID string) error
}

type StatsService struct {
	tasks TaskRepository
	clock clock.Clock
	cache StatsCache
}

func NewStatsService(tasks TaskRepository, clk clock.Clock, cache StatsCache) *StatsService {
	if clk == nil {
		clk = clock.System{}
	}
	return &StatsService{tasks: tasks, clock: clk, cache: cache}
}

// Statistics evaluates the owner's snapshot at the current instant. Only the
// snapshot is cached, so overdue counts and the histogram follow the clock.
// Cache failures fall back to computing from the store.
func (s *StatsService) Statistics(ctx context.Context, ownerID string) (stats.Statistics, error) {
	now := s.clock.Now()

	var version int64
	cacheable := false
	if s.cache != nil {
		cached, v, err := s.cache.Get(ctx, ownerID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("owner_id", ownerID).Msg("statistics cache read failed")
		case cached != nil:
			return cached.At(now), nil
		default:
			version, cacheable = v, true
		}
	}

	tasks, err := s.tasks.ListTasks(ctx, ownerID, models.TaskFilter{})
	if err != nil {
		return stats.Statistics{}, err
	}
	snap := stats.NewSnapshot(tasks)

	if cacheable {
		if err := s.cache.Set(ctx, ownerID, version, snap); err != nil {
			log.Warn().Err(err).Str("owner_id", ownerID).Msg("statistics cache write failed")
		}
	}
	return snap.At(now), nil
}
