package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Allow2/brave-core-sub002/crypto"
	"github.com/Allow2/brave-core-sub002/grant"
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Parent-side grant token tooling",
}

var (
	grantKeyID    string
	grantSeedHex  string
	grantType     string
	grantChildID  string
	grantActivity int
	grantMinutes  int
	grantValidity time.Duration
	grantDeviceID string

	inspectPubHex string
)

var grantKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a grant signing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateSigningKey(grantKeyID)
		if err != nil {
			return err
		}
		defer key.Destroy()
		fmt.Printf("key id:     %s\n", grantKeyID)
		fmt.Printf("public key: %s\n", key.PublicHex())
		fmt.Println("Store the seed shown below securely; it signs time grants.")
		seed, err := key.SeedHex()
		if err != nil {
			return err
		}
		fmt.Printf("seed:       %s\n", seed)
		return nil
	},
}

var grantNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Sign a new offline time grant",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.ParseSigningKey(grantKeyID, grantSeedHex)
		if err != nil {
			return err
		}
		defer key.Destroy()

		codec := grant.NewCodec()
		now := time.Now()
		token, err := codec.Generate(grant.Grant{
			Type:       grant.Type(grantType),
			ChildID:    grantChildID,
			ActivityID: grantActivity,
			Minutes:    grantMinutes,
			IssuedAt:   now,
			ExpiresAt:  now.Add(grantValidity),
			DeviceID:   grantDeviceID,
		}, key)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var grantInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a grant token and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := crypto.ParseVerifyKey(inspectPubHex)
		if err != nil {
			return err
		}
		g, ok := grant.NewCodec().ParseAndVerify(args[0], pub)
		if !ok {
			return fmt.Errorf("token is invalid or expired")
		}
		fmt.Printf("type:      %s\n", g.Type)
		fmt.Printf("child:     %s\n", orAny(g.ChildID))
		fmt.Printf("device:    %s\n", orAny(g.DeviceID))
		fmt.Printf("minutes:   %d\n", g.Minutes)
		fmt.Printf("issued:    %s\n", g.IssuedAt.Format(time.RFC3339))
		fmt.Printf("expires:   %s\n", g.ExpiresAt.Format(time.RFC3339))
		fmt.Printf("nonce:     %s\n", g.Nonce)
		fmt.Printf("key id:    %s\n", g.KeyID)
		return nil
	},
}

func orAny(s string) string {
	if s == "" {
		return "(any)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(grantCmd)
	grantCmd.AddCommand(grantKeygenCmd, grantNewCmd, grantInspectCmd)

	grantKeygenCmd.Flags().StringVar(&grantKeyID, "key-id", "parent-1", "Identifier embedded in token headers")

	grantNewCmd.Flags().StringVar(&grantKeyID, "key-id", "parent-1", "Identifier embedded in token headers")
	grantNewCmd.Flags().StringVar(&grantSeedHex, "seed", "", "Hex-encoded signing key seed (required)")
	grantNewCmd.Flags().StringVar(&grantType, "type", string(grant.TypeExtension), "Grant type: extension, quota, earlier, liftban")
	grantNewCmd.Flags().StringVar(&grantChildID, "child", "", "Target child ID (empty for any)")
	grantNewCmd.Flags().IntVar(&grantActivity, "activity", 0, "Target activity ID")
	grantNewCmd.Flags().IntVar(&grantMinutes, "minutes", 30, "Minutes granted (max 480)")
	grantNewCmd.Flags().DurationVar(&grantValidity, "validity", time.Hour, "Validity window (max 24h)")
	grantNewCmd.Flags().StringVar(&grantDeviceID, "device", "", "Target device ID (empty for any)")
	_ = grantNewCmd.MarkFlagRequired("seed")

	grantInspectCmd.Flags().StringVar(&inspectPubHex, "public-key", "", "Hex-encoded verify key (required)")
	_ = grantInspectCmd.MarkFlagRequired("public-key")
}
