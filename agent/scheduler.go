package agent

import (
	"context"
	"time"
)

const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultReportInterval  = 30 * time.Second
)

// scheduler paces the polling loop. Both cadences are measured from session
// start; the report cadence is only evaluated on a refresh tick, so reports
// land on refresh boundaries.
type scheduler struct {
	clock       Clock
	refresh     time.Duration
	report      time.Duration
	nextRefresh time.Time
	nextReport  time.Time
}

func newScheduler(clock Clock, refresh, report time.Duration) *scheduler {
	now := clock.Now()
	return &scheduler{
		clock:       clock,
		refresh:     refresh,
		report:      report,
		nextRefresh: now.Add(refresh),
		nextReport:  now.Add(report),
	}
}

// wait blocks until the next refresh tick and reports whether an asset report
// is due on that tick.
func (s *scheduler) wait(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for {
		now := s.clock.Now()
		if !now.Before(s.nextRefresh) {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-s.clock.After(s.nextRefresh.Sub(now)):
		}
	}

	now := s.clock.Now()
	s.nextRefresh = now.Add(s.refresh)
	if now.Before(s.nextReport) {
		return false, nil
	}
	s.nextReport = now.Add(s.report)
	return true, nil
}
