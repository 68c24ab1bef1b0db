// Package cmd holds the arenad command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped by the build; source builds report dev.
var Version = "dev"

// NewRootCmd creates the root command for arenad. It is called once in main.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arenad",
		Short: "Phantom Arena match daemon",
		Long: "arenad runs the arena: the deterministic match engine, tournament\n" +
			"brackets, agent challenges, pari-mutuel betting against the chain\n" +
			"ledger, and the spectator websocket feed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newStartCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the arenad version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
