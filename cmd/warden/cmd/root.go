package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden is the device-side parental-control authorization engine",
	Long: `Warden pairs a device with a parent account, verifies child PINs,
tracks usage against the remote quota service, and redeems offline
grant tokens and voice codes.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
