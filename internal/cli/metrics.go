package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/kanban-sync/internal/core"
)

var (
	metricsJSON  bool
	metricsSince string

	statsDays int
	statsDay  string
	statsJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task completions per day",
	Long: `Count completed tasks per UTC day over a window and compare the most
recent half of the window with the half before it. With --day, list the tasks
completed on that day.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		board := s.Board()

		if statsDay != "" {
			completions, err := core.CompletionsOn(board, statsDay)
			if err != nil {
				return err
			}
			if len(completions) == 0 {
				fmt.Fprintf(out, "No tasks completed on %s.\n", statsDay)
				return nil
			}
			fmt.Fprintf(out, "Completed on %s:\n", statsDay)
			for _, c := range completions {
				fmt.Fprintf(out, "  %s  %s (from %s)\n", c.Task.CompletedAt.UTC().Format("15:04"), c.Task.Title, c.Column)
			}
			return nil
		}

		stats := core.ComputeCompletionStats(board, statsDays, time.Now())
		if statsJSON {
			return writeJSON(out, stats)
		}
		peak := 0
		for _, d := range stats.Days {
			if d.Count > peak {
				peak = d.Count
			}
		}
		for _, d := range stats.Days {
			bar := ""
			if peak > 0 {
				bar = strings.Repeat("#", (d.Count*30+peak-1)/peak)
			}
			fmt.Fprintf(out, "  %s %3d %s\n", d.Day, d.Count, bar)
		}
		sign := ""
		if stats.ChangePct > 0 {
			sign = "+"
		}
		fmt.Fprintf(out, "\n  Recent %d, previous %d (%s%d%%)\n", stats.Recent, stats.Previous, sign, stats.ChangePct)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display board activity metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include task creation, completion and move counts, column changes,
undo and redo counts, and failed remote calls grouped by operation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return writeJSON(out, metrics)
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks completed:", metrics.TasksCompleted)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks reopened:", metrics.TasksReopened)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks deleted:", metrics.TasksDeleted)
		fmt.Fprintf(out, "  %-24s %d\n", "Task moves:", metrics.TaskMoves)
		fmt.Fprintf(out, "  %-24s %d\n", "Column changes:", metrics.ColumnChanges)
		fmt.Fprintf(out, "  %-24s %d / %d\n", "Undo / redo:", metrics.Undos, metrics.Redos)
		fmt.Fprintf(out, "  %-24s %d\n", "Imports:", metrics.Imports)
		fmt.Fprintf(out, "  %-24s %d\n", "Remote failures:", metrics.RemoteFailures)

		if len(metrics.FailuresByOp) > 0 {
			ops := make([]string, 0, len(metrics.FailuresByOp))
			for op := range metrics.FailuresByOp {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			fmt.Fprintln(out, "\n  Failures by operation:")
			for _, op := range ops {
				fmt.Fprintf(out, "    %-20s %d\n", op+":", metrics.FailuresByOp[op])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts check for repeated remote sync failures, open tasks without recent
activity, and the number of open tasks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 14, "Number of days in the window")
	statsCmd.Flags().StringVar(&statsDay, "day", "", "List the tasks completed on this day (YYYY-MM-DD)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output stats as JSON")
	rootCmd.AddCommand(statsCmd)

	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(alertsCmd)
}
