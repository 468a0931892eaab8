package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/hse-inspection/internal/pin"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "PIN administration",
	Long:  `Generate policy-compliant PINs and reset user PINs from the operator console`,
}

var pinGenerateCount int

var pinGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print random PINs that satisfy the PIN policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		for i := 0; i < pinGenerateCount; i++ {
			p, err := pin.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var pinResetReason string

var pinResetCmd = &cobra.Command{
	Use:   "reset [user-id]",
	Short: "Issue a new PIN for a user",
	Long:  `Replace a user's PIN. The old PIN stops working immediately and the reset is recorded in the audit trail.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configDir)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		deps, err := initializeDependencies(cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		plain, err := deps.Users.ResetPIN(cmd.Context(), user.System(), args[0], user.ResetPINRequest{Reason: pinResetReason})
		if err != nil {
			log.Fatalf("pin reset failed: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "New PIN for %s: %s\n", args[0], plain)
	},
}

func init() {
	pinGenerateCmd.Flags().IntVarP(&pinGenerateCount, "count", "n", 1, "Number of PINs to print")
	pinResetCmd.Flags().StringVar(&pinResetReason, "reason", "", "Why the PIN is being reset (required)")
	_ = pinResetCmd.MarkFlagRequired("reason")

	pinCmd.AddCommand(pinGenerateCmd)
	pinCmd.AddCommand(pinResetCmd)
}
