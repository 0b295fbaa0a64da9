package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustedge/sentinel/internal/audit"
)

var (
	reportType  string
	reportHours int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an audit report",
	Long:  "Aggregate retained audit events into a report and print it.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportType, "type", string(audit.ReportSecuritySummary),
		"report type: security_summary, compliance, threat_activity")
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "reporting window in hours")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := orch.Initialize(ctx); err != nil {
		return err
	}

	timeframe := audit.Timeframe{
		From: time.Now().Add(-time.Duration(reportHours) * time.Hour),
		To:   time.Now(),
	}
	dash, err := orch.GenerateSecurityDashboard(ctx, timeframe)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dash)
}
