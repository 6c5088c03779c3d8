package main

import (
	"github.com/spf13/cobra"

	"github.com/chrissnell/tipstation/internal/app"
	"github.com/chrissnell/tipstation/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station: rain poller, scheduler and query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := app.New(cfg, log.GetSugaredLogger()).Run(cmd.Context()); err != nil {
			log.Errorf("application error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
