package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPurgeSchedule = "@hourly"

	purgeTimeout = time.Minute
)

type Purger interface {
	PurgeDeletedTasks(ctx context.Context) (int64, error)
}

// Scheduler runs the background maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	purger Purger
}

func NewScheduler(purger Purger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		purger: purger,
	}
}

// ValidateSchedule reports whether spec is accepted by SchedulePurge.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := cron.ParseStandard(spec)
	return err
}

// SchedulePurge registers the soft-delete purge with a standard cron spec or
// a descriptor such as "@hourly".
func (s *Scheduler) SchedulePurge(spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultPurgeSchedule
	}
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		s.Purge(ctx)
	})
}

// Purge runs one purge pass and returns the number of tasks removed.
func (s *Scheduler) Purge(ctx context.Context) int64 {
	n, err := s.purger.PurgeDeletedTasks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("purge of deleted tasks failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("purged deleted tasks")
	}
	return n
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
