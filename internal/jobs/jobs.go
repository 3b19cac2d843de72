// Package jobs runs the periodic background checks of the backend.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/metrics"
	"saldokonter/backend/internal/notify"
)

// StaleShiftSource lists open shifts started more than olderThan ago.
type StaleShiftSource interface {
	StaleOpenShifts(ctx context.Context, olderThan time.Duration) ([]domain.Shift, error)
}

type StaleShiftSweep struct {
	source    StaleShiftSource
	notifier  notify.Notifier
	olderThan time.Duration
}

func NewStaleShiftSweep(source StaleShiftSource, notifier notify.Notifier, olderThan time.Duration) *StaleShiftSweep {
	return &StaleShiftSweep{source: source, notifier: notifier, olderThan: olderThan}
}

// Run warns about every shift left open past the threshold and returns how
// many it found.
func (j *StaleShiftSweep) Run(ctx context.Context) (int, error) {
	stale, err := j.source.StaleOpenShifts(ctx, j.olderThan)
	if err != nil {
		return 0, fmt.Errorf("list stale shifts: %w", err)
	}
	metrics.StaleShifts.Set(float64(len(stale)))
	for _, shift := range stale {
		j.notifier.Notify(notify.Warning, "Shift still open",
			fmt.Sprintf("%s at %s has been open since %s", shift.Username, shift.Lokasi, shift.StartTime.Format(time.DateTime)))
	}
	return len(stale), nil
}

type Scheduler struct {
	cron *gocron.Scheduler
}

// Start schedules the sweep every hour in loc and runs the scheduler in the
// background. The first run happens immediately.
func Start(ctx context.Context, loc *time.Location, sweep *StaleShiftSweep) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	cron := gocron.NewScheduler(loc)
	_, err := cron.Every(1).Hour().Do(func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		found, err := sweep.Run(runCtx)
		if err != nil {
			log.Printf("[jobs] WARN: stale shift sweep failed: %v", err)
			return
		}
		if found > 0 {
			log.Printf("[jobs] stale shift sweep found %d open shifts", found)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule stale shift sweep: %w", err)
	}
	cron.StartAsync()
	return &Scheduler{cron: cron}, nil
}

func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Stop()
}
