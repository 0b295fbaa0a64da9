package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the security engine",
	Long: `Initialize all security subsystems and run the scheduled checks
(device integrity, policy compliance, behavioral analysis, network scans)
until interrupted.`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire engine: %w", err)
	}
	defer cleanup()

	result, err := orch.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("sentinel initialized: status=%s level=%s ready=%v\n",
		result.Status, result.SecurityLevel, result.ReadyForProduction)

	orch.StartScheduler(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("shutting down...")
	orch.Shutdown(context.Background())
	return nil
}
