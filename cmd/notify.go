package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/notify"
	"github.com/spf13/cobra"
)

var notifyLabel string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification sink utilities",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send one test event through every configured sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runNotifyTest(cmd.Context(), cmd.OutOrStdout(), cfg, notifyLabel)
	},
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyLabel, "label", matcher.Unknown, "Label to put in the test event")
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}

func runNotifyTest(ctx context.Context, out io.Writer, c config.Config, label string) error {
	d, closeSinks := notify.Setup(ctx, c.Notifications, logger)
	defer closeSinks()

	isMatch := label != matcher.Unknown
	distance := matcher.EmptyGalleryDistance
	if isMatch {
		distance = 0
	}
	ev := notify.FaceEvent(label, distance, c.Recognition.MatchThreshold, isMatch, time.Now())
	report := d.Dispatch(ctx, ev)

	fmt.Fprintln(out, renderReport(report))
	return nil
}

func renderReport(report notify.Report) string {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		status, detail := "ok", ""
		if !res.OK() {
			status, detail = "failed", res.Err.Error()
		}
		rows = append(rows, []string{res.Sink, status, res.Duration.Round(time.Millisecond).String(), detail})
	}
	return renderTable([]string{"SINK", "STATUS", "DURATION", "ERROR"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}
