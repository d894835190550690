package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Allow2/brave-core-sub002/voicecode"
)

var approveSecret string

var approveCmd = &cobra.Command{
	Use:   "approve <request-code>",
	Short: "Compute the voice approval code for a request code",
	Long: `Computes the six-digit approval code a parent reads back to the
child. The shared secret is the pairing token shown in the parent app.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approver, err := voicecode.NewApprover([]byte(approveSecret))
		if err != nil {
			return err
		}
		code, err := approver.ApprovalCodeFor(args[0])
		if err != nil {
			return err
		}
		fmt.Println(code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().StringVar(&approveSecret, "secret", "", "Shared pairing secret (required)")
	_ = approveCmd.MarkFlagRequired("secret")
}
