package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"konan/internal/app"
)

var syncFirst bool

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one session now and exit",
	Long: `Run a single session immediately, from the current time of day until the
configured end time. Actions whose trigger has already passed fire on the
first cycle, in trigger order.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().BoolVar(&syncFirst, "sync", true, "download cloud.sync objects before the session")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	opts := []app.Option{}
	if !syncFirst {
		opts = append(opts, app.WithoutSync())
	}
	a, err := app.New(cfgPath, opts...)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := a.RunOnce(ctx)
	_ = a.Stop(context.Background(), app.StopOnceDone)
	return runErr
}
