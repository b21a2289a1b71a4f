package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"konan/internal/app"
	"konan/internal/datasource"
)

var cloudTimeout time.Duration

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download every cloud.sync object into the data root",
	Args:  cobra.NoArgs,
	RunE:  runPull,
}

var pushCmd = &cobra.Command{
	Use:   "push LOCAL KEY",
	Short: "Upload a local file to the configured bucket",
	Args:  cobra.ExactArgs(2),
	RunE:  runPush,
}

func init() {
	for _, c := range []*cobra.Command{pullCmd, pushCmd} {
		c.Flags().DurationVar(&cloudTimeout, "timeout", 5*time.Minute, "overall transfer timeout")
		rootCmd.AddCommand(c)
	}
}

func cloudApp() (*app.App, error) {
	a, err := app.New(cfgPath)
	if err != nil {
		return nil, err
	}
	if a.ObjectStore() == nil {
		_ = a.Stop(context.Background(), app.StopOnceDone)
		return nil, errors.New("cloud section not configured")
	}
	return a, nil
}

func runPull(cmd *cobra.Command, _ []string) error {
	a, err := cloudApp()
	if err != nil {
		return err
	}
	defer a.Stop(context.Background(), app.StopOnceDone)

	ctx, cancel := context.WithTimeout(cmd.Context(), cloudTimeout)
	defer cancel()
	return a.SyncData(ctx)
}

func runPush(cmd *cobra.Command, args []string) error {
	a, err := cloudApp()
	if err != nil {
		return err
	}
	defer a.Stop(context.Background(), app.StopOnceDone)

	ctx, cancel := context.WithTimeout(cmd.Context(), cloudTimeout)
	defer cancel()
	if err := datasource.Upload(ctx, a.ObjectStore(), afero.NewOsFs(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s -> %s\n", args[0], args[1])
	return nil
}
