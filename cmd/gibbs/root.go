package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gibbs",
	Short: "Gibbs samplers for hierarchical spatial econometric models",
	Long: `gibbs estimates hierarchical spatial models (HSE and HSDEM) by Markov
chain Monte Carlo, driven by a YAML run configuration.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
