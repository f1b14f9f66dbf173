package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct{ runs atomic.Int32 }

func (c *countingSweeper) SweepStale(ctx context.Context) (int, error) {
	c.runs.Add(1)
	return 1, nil
}

type failingPublisher struct{ runs atomic.Int32 }

func (f *failingPublisher) Publish(ctx context.Context) (string, error) {
	f.runs.Add(1)
	return "", errors.New("bucket unavailable")
}

func TestAddRejectsInvalidSpec(t *testing.T) {
	s := New(zap.NewNop())
	err := s.Add("broken", "not a schedule", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestMaintenanceJobsRunRepeatedly(t *testing.T) {
	s := New(zap.NewNop())
	sweeper := &countingSweeper{}
	publisher := &failingPublisher{}

	require.NoError(t, StartMaintenanceJobs(s, sweeper, "@every 1s", publisher, "@every 1s"))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	// A failing job keeps its schedule.
	require.Eventually(t, func() bool {
		return sweeper.runs.Load() >= 2 && publisher.runs.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestEmptySpecDisablesJob(t *testing.T) {
	s := New(zap.NewNop())
	require.NoError(t, StartMaintenanceJobs(s, &countingSweeper{}, "", &failingPublisher{}, ""))
	assert.Empty(t, s.cron.Entries())
	s.Stop(context.Background())
}
