// Copyright Contributors to the Opus project

// Package schedule triggers recurring processing runs from cron
// expressions.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/nicc777/opus/pkg/logging"
)

// Runner is the subset of the orchestrator a schedule drives.
type Runner interface {
	ProcessContext(command, context string) error
}

// Scheduler runs ProcessContext invocations on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

// New returns a stopped Scheduler; add entries with AddRun and start it
// with Start.
func New(log logging.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logging.OrDiscard(log),
	}
}

// AddRun schedules a recurring ProcessContext(command, environment) on the
// runner. The spec uses the standard five-field cron syntax or a
// descriptor such as "@hourly" or "@every 1h".
func (s *Scheduler) AddRun(spec string, runner Runner, command, environment string) (cron.EntryID, error) {
	if runner == nil {
		return 0, fmt.Errorf("cannot schedule a run without a runner")
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.log.Info(fmt.Sprintf("scheduled run: command %q in context %q", command, environment))
		if err := runner.ProcessContext(command, environment); err != nil {
			s.log.Error(fmt.Sprintf("scheduled run for command %q in context %q failed: %v", command, environment, err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule run with spec %q: %w", spec, err)
	}
	return id, nil
}

// Remove drops a scheduled entry.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Entries returns the number of scheduled entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler until the context is cancelled, then waits for
// any in-flight run to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started")
	<-ctx.Done()
	s.log.Info("scheduler shutting down")
	<-s.cron.Stop().Done()
}
