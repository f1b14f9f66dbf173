package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 2 * time.Minute

// CallSweeper ends calls that rang past their timeout.
type CallSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// SitemapPublisher regenerates the stored sitemap.
type SitemapPublisher interface {
	Publish(ctx context.Context) (string, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// New creates a new Scheduler. Overlapping runs of the same job are skipped.
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.Named("scheduler"),
	}
}

// Add registers job under spec. Failures are logged and do not stop later
// runs.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
	})
	if err != nil {
		return err
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// StartMaintenanceJobs schedules the call sweep and the sitemap refresh and
// starts the scheduler. An empty spec disables that job.
func StartMaintenanceJobs(s *Scheduler, calls CallSweeper, callSpec string, sitemap SitemapPublisher, sitemapSpec string) error {
	if callSpec != "" {
		err := s.Add("sweep-stale-calls", callSpec, func(ctx context.Context) error {
			n, err := calls.SweepStale(ctx)
			if n > 0 {
				s.log.Info("stale calls ended", zap.Int("count", n))
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	if sitemapSpec != "" {
		err := s.Add("publish-sitemap", sitemapSpec, func(ctx context.Context) error {
			_, err := sitemap.Publish(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("jobs still running at shutdown")
	}
}
