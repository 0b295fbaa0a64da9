package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustedge/sentinel/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel device security engine",
	Long: `sentinel is the device-side security decision engine.

It assesses device trust, enforces security policy, detects threats,
and records every decision in a tamper-evident audit trail.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("output", "json", "output format: json, text")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}
