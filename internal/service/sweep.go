package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// Expiring is an assignment table whose rows close by themselves once
// their end time passes.
type Expiring struct {
	Repo         *repository.AssignmentRepo
	ClosedStatus string
}

// Sweeper applies the time-driven transitions. Each step is one
// conditional UPDATE, so a row that a request already moved is skipped
// and running the sweep twice changes nothing.
type Sweeper struct {
	Deps
	InOut    *repository.InOutRepo
	Expiring []Expiring
}

func NewSweeper(d Deps, inout *repository.InOutRepo, expiring ...Expiring) *Sweeper {
	return &Sweeper{Deps: d, InOut: inout, Expiring: expiring}
}

// SweepResult counts the rows changed by one run.
type SweepResult struct {
	Entered int64
	Exited  int64
	Expired map[string]int64
}

// RunOnce performs every step at the current time. A failing step is
// logged and the remaining steps still run; the first error is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	now := s.now()
	res := SweepResult{Expired: map[string]int64{}}
	var first error
	keep := func(step string, err error) {
		if err == nil {
			return
		}
		s.Log.Error("sweep step failed", zap.String("step", step), zap.Error(err))
		if first == nil {
			first = err
		}
	}

	n, err := s.InOut.MarkEnteredDue(ctx, now)
	keep("entered", err)
	res.Entered = n
	s.Metrics.ObserveTransition(model.InOutEntered, "sweep", n)
	s.Metrics.ObserveSweep("entered", n)

	n, err = s.InOut.MarkExitedDue(ctx, now)
	keep("exited", err)
	res.Exited = n
	s.Metrics.ObserveTransition(model.InOutExited, "sweep", n)
	s.Metrics.ObserveSweep("exited", n)

	for _, e := range s.Expiring {
		kind := e.Repo.Table().Kind
		n, err := e.Repo.ExpireDue(ctx, e.ClosedStatus, now)
		keep("expire_"+kind, err)
		res.Expired[kind] = n
		s.Metrics.ObserveSweep("expire_"+kind, n)
	}

	if res.Entered+res.Exited+sum(res.Expired) > 0 {
		s.Log.Info("sweep applied", zap.Int64("entered", res.Entered), zap.Int64("exited", res.Exited),
			zap.Any("expired", res.Expired))
	}
	return res, first
}

// Run calls RunOnce every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		_, _ = s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func sum(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}
