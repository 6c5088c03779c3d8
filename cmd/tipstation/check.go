package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tipstation/internal/app"
	"github.com/chrissnell/tipstation/internal/log"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Initialize the sensors, take one sample and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		snap, err := app.New(cfg, log.GetSugaredLogger()).Check(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
