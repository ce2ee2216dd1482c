package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aretw0/gibbs/pkg/diagnostics"
	"github.com/aretw0/gibbs/pkg/trace"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <trace.csv>",
	Short: "Compute convergence diagnostics for a multi-chain trace",
	Long: `Reads the per-chain CSV files written by a parallel run (trace_0.csv,
trace_1.csv, ...) and prints the potential scale reduction factor of every
parameter. Values near 1 indicate convergence.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")

		tr, err := trace.FromCSVMulti(args[0])
		if err != nil {
			return err
		}
		psrf, err := diagnostics.PSRF(tr, diagnostics.Method(method))
		if err != nil {
			return err
		}

		names := make([]string, 0, len(psrf))
		for name := range psrf {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("%-12s %s\n", "parameter", "psrf")
		for _, name := range names {
			for i, r := range psrf[name] {
				label := name
				if len(psrf[name]) > 1 {
					label = fmt.Sprintf("%s_%d", name, i)
				}
				fmt.Printf("%-12s %.4f\n", label, r)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().String("method", string(diagnostics.MethodBrooks),
		"PSRF variant: brooks or original")
}
