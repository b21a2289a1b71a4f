package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"konan/internal/config"
	"konan/internal/storage"
	logx "konan/pkg/logx"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent journal records",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "records to print")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return err
	}
	if cfg.Storage == nil {
		return errors.New("storage section not configured")
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: res.BusyTimeout,
	}, logx.Nop())
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("journal disabled (storage.driver is none)")
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	recs, err := st.RecentFires(ctx, historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tRUN\tTRIGGER\tACTION\tOUTCOME\tTOOK\tPENDING\tERROR")
	for _, r := range recs {
		run := r.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%d\t%s\n",
			r.At.In(res.Location).Format("2006-01-02 15:04:05"), run, r.Trigger, r.Action,
			r.Outcome, r.TookMS, r.Pending, strings.ReplaceAll(r.Error, "\n", " "))
	}
	return w.Flush()
}
