package automation

import (
	"context"
	"time"
)

// Run executes an automation pass every interval until ctx is done.
//
// An interval of zero or less pauses the timer; SetInterval resumes it or
// changes its period without restarting Run. Run returns nil when the
// context ends.
func (s *System) Run(ctx context.Context, interval time.Duration) error {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	reset := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		s.interval.Store(int64(d))
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	reset(interval)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	s.logger.Info("simulation timer started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation timer stopped", "passes", s.Passes())
			return nil

		case d := <-s.intervalCh:
			reset(d)
			s.logger.Info("simulation interval changed", "interval", d)

		case <-tick:
			if _, err := s.Execute(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("automation pass failed", "error", err)
			}
		}
	}
}

// SetInterval changes the period of a running timer loop. Only the latest
// value is kept if several arrive before Run picks one up.
func (s *System) SetInterval(d time.Duration) {
	for {
		select {
		case s.intervalCh <- d:
			return
		default:
		}
		select {
		case <-s.intervalCh:
		default:
		}
	}
}

// Interval returns the timer period last applied by Run.
func (s *System) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}
