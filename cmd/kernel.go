package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"zjos-go/abi"
	"zjos-go/env"
	"zjos-go/metrics"
	"zjos-go/mm"
	"zjos-go/sched"
	zsyscall "zjos-go/syscall"
)

// instance bundles one booted kernel: its config, environment table,
// syscall surface, scheduler, and metrics registry.
type instance struct {
	cfg     *abi.Config
	table   *env.Table
	kernel  *zsyscall.Kernel
	sched   *sched.Scheduler
	metrics *metrics.Registry
	promReg *prometheus.Registry
}

// bootInstance builds a kernel from the global --config flag (or
// defaults), with console output directed at consoleOut.
func bootInstance(consoleOut io.Writer, ncpu, nenv int) (*instance, error) {
	cfg := abi.DefaultConfig()
	if globalConfig != "" {
		loaded, err := abi.LoadConfig(globalConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if ncpu > 0 {
		cfg.NCPU = ncpu
	}
	if nenv > 0 {
		cfg.NENV = nenv
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table, err := env.NewTable(cfg.NENV, cfg.NCPU, mm.NewArena())
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	k := zsyscall.NewKernel(table, table.Allocator(), zsyscall.NewConsole(consoleOut))
	k.Metrics = reg

	s := sched.NewScheduler(table, k)
	s.Metrics = reg

	return &instance{
		cfg:     cfg,
		table:   table,
		kernel:  k,
		sched:   s,
		metrics: reg,
		promReg: promReg,
	}, nil
}

// run starts one scheduler loop per CPU and blocks until ctx is
// cancelled and every loop has returned.
func (in *instance) run(ctx context.Context) {
	var wg sync.WaitGroup
	for cpu := 0; cpu < in.cfg.NCPU; cpu++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			in.sched.Run(ctx, id)
		}(cpu)
	}
	wg.Wait()
}
