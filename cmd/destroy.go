package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"zjos-go/abi"
	"zjos-go/demo"
	"zjos-go/env"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <env-id>",
	Short: "Destroy one environment by numeric id",
	Long: `Boot a kernel instance, seed it with a demo scenario, destroy the
environment with the given numeric id, and print the table that
remains. Useful for poking at lifecycle and generation behavior
without writing a program.`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

var destroyScenario string

func init() {
	rootCmd.AddCommand(destroyCmd)

	destroyCmd.Flags().StringVar(&destroyScenario, "scenario", "hello", "seed this demo scenario before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	raw, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("parse env id %q: %w", args[0], err)
	}
	id := abi.EnvID(raw)

	in, err := bootInstance(os.Stdout, 0, 0)
	if err != nil {
		return err
	}
	if destroyScenario != "" {
		if err := demo.Seed(destroyScenario, in.kernel, in.table); err != nil {
			return err
		}
	}

	if err := destroyByID(in.table, id); err != nil {
		return err
	}
	fmt.Printf("destroyed %s\n", id)
	return printEnvTable(os.Stdout, in.table.Snapshot(), false)
}

func destroyByID(tbl *env.Table, id abi.EnvID) error {
	tbl.Lock()
	defer tbl.Unlock()
	slot := id.Slot()
	if slot >= tbl.Len() {
		return fmt.Errorf("%s: slot out of range", id)
	}
	e := tbl.EnvAt(slot)
	if e.Status.Kind == abi.Free || e.ID != id {
		return fmt.Errorf("%s: no such environment", id)
	}
	if e.Type == abi.EnvIdle {
		return fmt.Errorf("%s: refusing to destroy a CPU's idle environment", id)
	}
	return tbl.Destroy(e)
}
