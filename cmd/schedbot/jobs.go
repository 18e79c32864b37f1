package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coopco/schedbot/internal/cron"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the persisted scheduled jobs without connecting to any platform",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, err := cron.NewStore(cfg.Scheduler.StorePath).Load()
		if err != nil {
			return err
		}
		return printJobs(cmd, records)
	},
}

func printJobs(cmd *cobra.Command, records []cron.JobRecord) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No scheduled jobs.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tCHANNEL\tTIME\tTIMEZONE\tMESSAGE")
	for _, rec := range records {
		platform := rec.Platform
		if platform == "" {
			platform = cron.DefaultPlatform
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%02d:%02d\t%s\t%s\n",
			rec.ID, platform, rec.ChannelID, rec.Hour, rec.Minute, rec.Timezone, rec.Message)
	}
	return w.Flush()
}
