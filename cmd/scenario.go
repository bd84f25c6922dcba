package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"zjos-go/demo"
	"zjos-go/logging"
)

var scenarioCmd = &cobra.Command{
	Use:   "run-scenario <name>",
	Short: "Boot the kernel and drive one demo scenario to completion",
	Long: `Boot a kernel instance, seed the environment table with one of the
named demo scenarios (` + fmt.Sprint(demo.Names) + `), and run the
per-CPU schedulers until every user environment has destroyed itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

var (
	scenarioCPUs        int
	scenarioNENV        int
	scenarioMetricsAddr string
)

func init() {
	rootCmd.AddCommand(scenarioCmd)

	scenarioCmd.Flags().IntVar(&scenarioCPUs, "cpus", 0, "number of simulated CPUs (overrides config)")
	scenarioCmd.Flags().IntVar(&scenarioNENV, "nenv", 0, "environment table capacity (overrides config)")
	scenarioCmd.Flags().StringVar(&scenarioMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(GetContext())
	defer cancel()

	in, err := bootInstance(os.Stdout, scenarioCPUs, scenarioNENV)
	if err != nil {
		return err
	}

	// The diagnostic monitor doubles as the exit condition here: once
	// no non-idle environment is left RUNNABLE or RUNNING anywhere,
	// the scenario is over.
	in.sched.Monitor = func(cpuID int) {
		cancel()
	}

	if scenarioMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(in.promReg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: scenarioMetricsAddr, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
				defer stop()
				_ = srv.Shutdown(shutdownCtx)
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("metrics server failed", "error", err)
			}
		}()
	}

	if err := demo.Seed(args[0], in.kernel, in.table); err != nil {
		return err
	}

	logging.Info("scenario booted", "scenario", args[0], "cpus", in.cfg.NCPU, "nenv", in.cfg.NENV)
	in.run(ctx)
	logging.Info("scenario drained", "scenario", args[0])
	return nil
}
