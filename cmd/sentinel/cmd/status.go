package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current security posture",
	Long:  "Initialize the subsystems and print the aggregated security status.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := orch.Initialize(ctx); err != nil {
		return err
	}

	status, err := orch.GetSecurityStatus(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	fmt.Printf("health: %.2f (%s), threat level: %s\n",
		status.Health, status.Category, status.ThreatLevel)
	return nil
}
