package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"zjos-go/abi"
	"zjos-go/demo"
	"zjos-go/env"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List the environment table",
	Long: `Boot a kernel instance, optionally seed it with a demo scenario, and
print every occupied slot of the environment table.`,
	Args: cobra.NoArgs,
	RunE: runEnvs,
}

var (
	envsScenario string
	envsAll      bool
)

func init() {
	rootCmd.AddCommand(envsCmd)

	envsCmd.Flags().StringVar(&envsScenario, "scenario", "", "seed this demo scenario before listing")
	envsCmd.Flags().BoolVarP(&envsAll, "all", "a", false, "include FREE slots")
}

func runEnvs(cmd *cobra.Command, args []string) error {
	in, err := bootInstance(os.Stdout, 0, 0)
	if err != nil {
		return err
	}
	if envsScenario != "" {
		if err := demo.Seed(envsScenario, in.kernel, in.table); err != nil {
			return err
		}
	}
	return printEnvTable(os.Stdout, in.table.Snapshot(), envsAll)
}

func printEnvTable(out io.Writer, snapshot []env.Env, includeFree bool) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tID\tPARENT\tSTATUS\tTYPE\tCPU")
	for slot, e := range snapshot {
		if e.Status.Kind == abi.Free && !includeFree {
			continue
		}
		cpu := "-"
		if e.Status.Kind == abi.Running {
			cpu = fmt.Sprint(e.Status.CPU)
		}
		parent := "-"
		if e.ParentID != 0 {
			parent = e.ParentID.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			slot, e.ID, parent, e.Status, e.Type, cpu)
	}
	return w.Flush()
}
