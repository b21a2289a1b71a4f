package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"konan/internal/app"
	"konan/internal/broker"
	"konan/internal/config"
	"konan/internal/datasource"
	"konan/internal/schedule"
	"konan/internal/strategy"
	logx "konan/pkg/logx"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and print the session schedule",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return fmt.Errorf("%s: %w", cfgPath, err)
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", cfgPath, err)
	}

	// Resolving actions needs a session, not data: nothing is loaded here.
	sess, err := strategy.NewSession(strategy.SessionConfig{
		Name:     res.Name,
		Universe: cfg.Data.Universe,
		Plan:     app.SessionPlan(cfg),
	}, datasource.NewLoader(nil, datasource.Options{}, logx.Nop()), nil, broker.NewPaper(broker.PaperConfig{}, logx.Nop()), logx.Nop())
	if err != nil {
		return err
	}
	sched, err := schedule.NewSchedule(sess.Events())
	if err != nil {
		return err
	}

	spec, err := cron.ParseStandard(res.CronSpec)
	if err != nil {
		return err
	}
	next := spec.Next(time.Now().In(res.Location))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "config\t%s\n", cfgPath)
	fmt.Fprintf(w, "strategy\t%s\n", res.Name)
	fmt.Fprintf(w, "cron\t%s (%s), next %s\n", res.CronSpec, res.Location, next.Format(time.RFC3339))
	fmt.Fprintf(w, "end\t%s, poll %s\n", res.Engine.End, res.Engine.PollInterval)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TRIGGER\tACTION\tARGS")
	for _, e := range sched.Entries() {
		args := ""
		if e.Args != nil {
			args = fmt.Sprint(e.Args)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Trigger, e.Name, args)
	}
	return w.Flush()
}
