package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fieldcheck",
	Short: "FieldCheck is a multi-channel field-query service",
	Long: `FieldCheck lets enrolled officers run wanted, missing, background,
vehicle and stats queries from the field over USSD or WhatsApp, with
Quick-PIN authentication, daily quotas and a full audit trail.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
