package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustedge/sentinel/internal/models"
	"github.com/trustedge/sentinel/internal/orchestrator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a full policy check",
	Long: `Evaluate every registered policy rule once, execute enforcement
for violations, and print the compliance result. Exits non-zero when the
device is out of compliance.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := orch.Initialize(ctx); err != nil {
		return err
	}

	resp := orch.ExecuteSecurityOperation(ctx, orchestrator.Request{
		Operation: models.OpEnforcePolicy,
	})
	if resp.Error != nil {
		return fmt.Errorf("policy check failed: %s", resp.Error.Message)
	}

	fmt.Printf("compliance score: %v\n", resp.Result["compliance_score"])
	fmt.Printf("violations: %v\n", resp.Result["violations"])
	if compliant, _ := resp.Result["overall_compliance"].(bool); !compliant {
		return fmt.Errorf("device is not compliant")
	}
	fmt.Println("device is compliant")
	return nil
}
