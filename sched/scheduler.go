package sched

import (
	"context"
	"log/slog"

	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
	"zjos-go/logging"
	"zjos-go/metrics"
)

// Scheduler runs one dispatch loop per CPU against a shared
// environment table. Run is meant to be invoked once per CPU, each
// on its own goroutine (the cmd package's boot path does exactly
// that).
type Scheduler struct {
	Table   *env.Table
	CPUs    []*CPU
	Kernel  env.Kernel
	Metrics *metrics.Registry
	Logger  *slog.Logger

	// Monitor is the diagnostic fallback entered when a full pass
	// over the table finds no non-idle environment RUNNABLE or
	// RUNNING anywhere. It receives the CPU
	// that hit the condition. A nil Monitor just logs and returns,
	// letting Run's loop spin (acceptable for tests); cmd wires a
	// real interactive REPL here.
	Monitor func(cpuID int)
}

// NewScheduler builds a scheduler over an existing table, one CPU
// state per table.NCPU().
func NewScheduler(t *env.Table, kernel env.Kernel) *Scheduler {
	cpus := make([]*CPU, t.NCPU())
	for i := range cpus {
		cpus[i] = NewCPU(i)
	}
	logger := logging.Default()
	return &Scheduler{Table: t, CPUs: cpus, Kernel: kernel, Logger: logger}
}

// Run drives CPU cpuID's dispatch loop until ctx is cancelled: pick
// the next environment, dispatch it, block until it parks or exits,
// repeat.
func (s *Scheduler) Run(ctx context.Context, cpuID int) {
	cpu := s.CPUs[cpuID]
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.Table.Lock()
		next, needMonitor := s.pick(cpu)
		if needMonitor {
			s.Table.Unlock()
			s.runMonitor(cpuID)
			continue
		}
		next.Status = abi.StatusRunning(cpuID)
		next.CPU = cpuID
		cpu.CurEnv = next
		if s.Metrics != nil {
			s.Metrics.SchedDispatches.Inc()
			s.refreshMetricsLocked()
		}
		s.Table.Unlock()

		next.Start(s.Kernel)
		next.Dispatch()
		next.AwaitPause()

		if next.Exited() {
			s.reapIfExited(next)
		}
	}
}

// pick selects the next environment for cpu: a strict circular sweep
// from the slot after the last-run environment, then the still-running
// current environment, then this CPU's idle slot. It assumes the
// table's lock is already held. It returns (nil, true) when the
// diagnostic monitor should run instead of dispatching anything.
func (s *Scheduler) pick(cpu *CPU) (*env.Env, bool) {
	t := s.Table
	n := t.Len()

	start := cpu.ID
	if cpu.CurEnv != nil {
		start = cpu.CurEnv.Slot()
	}

	for i := (start + 1) % n; i != start; i = (i + 1) % n {
		candidate := t.EnvAt(i)
		// Idle environments are dispatched only as this CPU's
		// fallback below, never from the sweep.
		if candidate.Type == abi.EnvIdle {
			continue
		}
		if candidate.Status.Kind != abi.Runnable {
			continue
		}
		return candidate, false
	}

	if cpu.CurEnv != nil && cpu.CurEnv.Status.Kind == abi.Running && cpu.CurEnv.Status.CPU == cpu.ID {
		return cpu.CurEnv, false
	}

	anyLive := false
	for i := 0; i < n; i++ {
		e := t.EnvAt(i)
		if e.Type != abi.EnvIdle && (e.Status.Kind == abi.Runnable || e.Status.Kind == abi.Running) {
			anyLive = true
			break
		}
	}
	if !anyLive {
		return nil, true
	}

	idle := t.EnvAt(cpu.ID)
	if !(idle.Status.Kind == abi.Runnable || idle.Status.Kind == abi.Running) {
		panic(kerrors.ErrNoIdleEnv)
	}
	return idle, false
}

// refreshMetricsLocked recomputes the per-status gauge. Assumes the
// table's lock is held (it walks t.envs directly via EnvAt).
func (s *Scheduler) refreshMetricsLocked() {
	counts := map[string]int{
		abi.Free.String():        0,
		abi.Dying.String():       0,
		abi.Runnable.String():    0,
		abi.Running.String():     0,
		abi.NotRunnable.String(): 0,
	}
	for i := 0; i < s.Table.Len(); i++ {
		counts[s.Table.EnvAt(i).Status.Kind.String()]++
	}
	s.Metrics.RefreshEnvCounts(counts)
}

// reapIfExited destroys an environment whose Program returned without
// calling env_destroy(0) itself, a safety net for Go closures that
// simply fall off the end.
func (s *Scheduler) reapIfExited(e *env.Env) {
	s.Table.Lock()
	defer s.Table.Unlock()
	if e.Status.Kind != abi.Free && e.Status.Kind != abi.Dying {
		_ = s.Table.Destroy(e)
		if s.Metrics != nil {
			s.Metrics.EnvDestroys.Inc()
		}
	}
}

func (s *Scheduler) runMonitor(cpuID int) {
	if s.Monitor != nil {
		s.Monitor(cpuID)
		return
	}
	logging.Warn("no runnable environments; diagnostic monitor has no handler", "cpu", cpuID)
}
