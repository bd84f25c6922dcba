package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zjos-go/abi"
	"zjos-go/demo"
	"zjos-go/logging"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Boot the kernel into the interactive diagnostic monitor",
	Long: `Boot a kernel instance, optionally seed a demo scenario, and run the
schedulers with the diagnostic monitor wired to an interactive prompt:
whenever a CPU finds no runnable environment anywhere, it drops into
the monitor instead of spinning. The monitor can also be entered
before anything is runnable, which is what this command does on a
bare boot.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorScenario string

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVar(&monitorScenario, "scenario", "", "seed this demo scenario before booting")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(GetContext())
	defer cancel()

	in, err := bootInstance(os.Stdout, 0, 0)
	if err != nil {
		return err
	}
	in.sched.Monitor = func(cpuID int) {
		if monitorREPL(in, cpuID) {
			cancel()
		}
	}

	if monitorScenario != "" {
		if err := demo.Seed(monitorScenario, in.kernel, in.table); err != nil {
			return err
		}
	}

	in.run(ctx)
	return nil
}

// monitorREPL is the diagnostic monitor: a small prompt over raw-mode
// stdin. It returns true when the operator asked to shut the kernel
// down, false to hand control back to the scheduler.
func monitorREPL(in *instance, cpuID int) (quit bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		logging.Warn("no runnable environments and stdin is not a terminal; stopping", "cpu", cpuID)
		return true
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		logging.Error("monitor: raw mode failed", "error", err)
		return true
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "K> ")

	fmt.Fprintf(t, "cpu %d: no runnable environments; entering monitor\r\n", cpuID)
	fmt.Fprintf(t, "commands: envs, destroy <id>, continue, quit\r\n")

	for {
		line, err := t.ReadLine()
		if err != nil {
			return true
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "envs":
			_ = printEnvTable(t, in.table.Snapshot(), false)
		case "destroy":
			if len(fields) != 2 {
				fmt.Fprintf(t, "usage: destroy <id>\r\n")
				continue
			}
			raw, err := strconv.ParseUint(fields[1], 0, 32)
			if err != nil {
				fmt.Fprintf(t, "bad id %q\r\n", fields[1])
				continue
			}
			if err := destroyByID(in.table, abi.EnvID(raw)); err != nil {
				fmt.Fprintf(t, "%v\r\n", err)
			} else {
				fmt.Fprintf(t, "destroyed %s\r\n", abi.EnvID(raw))
			}
		case "continue", "c":
			return false
		case "quit", "q", "exit":
			return true
		default:
			fmt.Fprintf(t, "unknown command %q\r\n", fields[0])
		}
	}
}
