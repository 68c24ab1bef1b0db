package main

import (
	"fmt"
	"os"

	"github.com/tmdry4530/Phantom-Arena-sub000/cmd/arenad/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.OutOrStderr(), err)
		os.Exit(1)
	}
}
