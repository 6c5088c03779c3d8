package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tipstation/internal/constants"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tipstation %s\n", constants.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
