package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Allow2/brave-core-sub002/remote"
	"github.com/Allow2/brave-core-sub002/session"
	bboltstorage "github.com/Allow2/brave-core-sub002/storage/bbolt"
)

var (
	pairServerURL string
	pairUsePIN    bool
	pairDataDir   string
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair this device with a parent account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(pairDataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := bboltstorage.NewStoreFromFile(pairDataDir+"/warden.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open device storage: %w", err)
		}
		defer store.Close()

		client, err := remote.NewClient(pairServerURL)
		if err != nil {
			return err
		}
		engine, err := session.New(client, store)
		if err != nil {
			return err
		}

		done := make(chan session.PairingPhase, 1)
		unsubscribe := engine.Subscribe(func(ev session.Event) {
			if ev.Type != session.EventPairingPhase {
				return
			}
			if ev.Scanned {
				fmt.Println("QR code scanned, waiting for approval...")
				return
			}
			switch ev.PairingPhase {
			case session.PhaseCompleted, session.PhaseExpired,
				session.PhaseFailed, session.PhaseCancelled:
				done <- ev.PairingPhase
			}
		})
		defer unsubscribe()

		ctx, cancel := context.WithTimeout(cmd.Context(), session.DefaultPairingTimeout+time.Minute)
		defer cancel()

		var ps session.PairingSession
		if pairUsePIN {
			ps, err = engine.Pairing().StartPINPairing(ctx)
		} else {
			ps, err = engine.Pairing().StartQRPairing(ctx)
		}
		if err != nil {
			return fmt.Errorf("starting pairing: %w", err)
		}

		if pairUsePIN {
			fmt.Printf("Enter this PIN in the parent app: %s\n", ps.PINCode)
		} else {
			fmt.Printf("Scan this QR payload with the parent app:\n%s\n", ps.QRPayload)
		}
		fmt.Printf("Session %s expires in %s\n", ps.SessionID, ps.ExpiresIn)

		select {
		case phase := <-done:
			switch phase {
			case session.PhaseCompleted:
				fmt.Printf("Paired. %d child profile(s) installed.\n", len(engine.Children()))
				return nil
			case session.PhaseExpired:
				return fmt.Errorf("pairing session expired")
			default:
				if engine.Pairing().Retryable() {
					return fmt.Errorf("pairing failed (retryable): %v", engine.Pairing().LastError())
				}
				return fmt.Errorf("pairing failed: %v", engine.Pairing().LastError())
			}
		case <-ctx.Done():
			engine.Pairing().Cancel()
			return fmt.Errorf("pairing timed out")
		}
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.Flags().StringVar(&pairServerURL, "server", "", "Base URL of the family service (required)")
	pairCmd.Flags().BoolVar(&pairUsePIN, "pin", false, "Use the PIN flow instead of QR")
	pairCmd.Flags().StringVar(&pairDataDir, "data-dir", "./data", "Directory for persistent device data")
	_ = pairCmd.MarkFlagRequired("server")
}
