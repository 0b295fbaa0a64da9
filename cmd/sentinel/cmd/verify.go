package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustedge/sentinel/internal/audit"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [chain-file]",
	Short: "Verify the audit chain file",
	Long: `Walk the hash-chained audit log and verify that every record links
to its predecessor. Detects truncation, reordering, and edits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := cfg.Audit.ChainFilePath
	if len(args) > 0 {
		path = args[0]
	}

	result := audit.VerifyChain(path)
	if !result.Valid {
		if result.ErrorLine > 0 {
			return fmt.Errorf("chain broken at line %d: %s", result.ErrorLine, result.Error)
		}
		return fmt.Errorf("chain verification failed: %s", result.Error)
	}

	fmt.Printf("chain intact: %d records verified\n", result.Lines)
	return nil
}
