package workers

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultRestartInterval = 200 * time.Millisecond

// Supervisor keeps the relay servers alive.
// A worker returning nil is done for good, a failing or panicking worker is restarted
// after the restart interval until the context ends.
type Supervisor struct {
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
	wg              sync.WaitGroup
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(workers ...contract.Worker) *Supervisor {
	s.workers = append(s.workers, workers...)
	return s
}

// Run starts every worker and blocks until all of them are done.
func (s *Supervisor) Run(ctx context.Context) {
	for _, worker := range s.workers {
		s.wg.Add(1)
		go s.supervise(ctx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	defer s.wg.Done()
	name := contract.GetWorkerName(worker)
	log := s.log.With("worker", name)

	for restarts := 0; ; restarts++ {
		log.Info("Worker starting", "restarts", restarts)
		err := runProtected(ctx, worker)
		switch {
		case ctx.Err() != nil:
			log.Info("Worker stopped")
			return
		case err == nil:
			log.Info("Worker finished")
			return
		}

		log.Warn("Worker failed, restarting", "error", err, "delay", s.restartInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restartInterval):
		}
	}
}

// runProtected turns a panic of the worker into an error.
func runProtected(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: %w", r, errors.ErrWorkerPanic)
		}
	}()
	return worker.Run(ctx)
}
