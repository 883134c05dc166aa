package process

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler runs a cooperative pool of processes concurrently (spec §5
// "Concurrency"), each bundle-preempted per §4.4. It wraps golang.org/x/sync
// the way the domain stack intends: errgroup.Group collects the first error
// across every process's run loop and cancels the rest, semaphore.Weighted
// bounds how many processes may be mid-bundle at once so a host with N
// cores does not try to run an unbounded number of goroutines concurrently.
type Scheduler struct {
	sem       *semaphore.Weighted
	logger    *zap.SugaredLogger
	processes []*Process
}

// NewScheduler builds a scheduler that runs at most maxConcurrent processes
// at a time. maxConcurrent <= 0 means unbounded.
func NewScheduler(maxConcurrent int64, logger *zap.SugaredLogger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var sem *semaphore.Weighted
	if maxConcurrent > 0 {
		sem = semaphore.NewWeighted(maxConcurrent)
	}
	return &Scheduler{sem: sem, logger: logger}
}

// Spawn registers a process with the scheduler before Run starts.
func (s *Scheduler) Spawn(p *Process) {
	s.processes = append(s.processes, p)
}

// Run drives every registered process to completion (or to the first
// unrecovered exception). Children a process creates at runtime via
// PROCESS/ACTOR are picked up as they appear: each is handed to the same
// errgroup, so the scheduler's population can grow while Run is still
// draining it (spec §5 "Fairness" — no process, including ones spawned
// mid-run, is starved of scheduling).
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	launch := func(p *Process) { g.Go(func() error { return s.runOne(gctx, p) }) }
	for _, p := range s.processes {
		p.Launch = launch
		launch(p)
	}
	return g.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, p *Process) error {
	exec := NewExecutor(p)
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return err
			}
		}
		res, err := exec.RunBundle(ctx)
		if s.sem != nil {
			s.sem.Release(1)
		}
		if err != nil {
			if exc, ok := err.(*Exception); ok {
				s.logger.Warnw("process terminated with uncaught exception",
					"pid", p.PID, "tag", exc.Tag, "message", exc.Message)
				p.Finish(1)
				return nil
			}
			return err
		}
		if res.Halted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
