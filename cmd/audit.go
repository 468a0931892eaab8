package cmd

import (
	"encoding/json"
	"log"

	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail commands",
	Long:  `Inspect the audit trail and re-apply retention limits`,
}

var (
	auditTailLimit  int
	auditTailAction string
)

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the newest audit entries as JSON lines",
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

		entries, err := deps.Audit.ListEvents(cmd.Context(), audit.Filter{Action: auditTailAction, Limit: auditTailLimit})
		if err != nil {
			log.Fatalf("failed to read audit trail: %v", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		// Oldest first so the newest entry ends up at the bottom, like tail.
		for i := len(entries) - 1; i >= 0; i-- {
			if err := enc.Encode(entries[i]); err != nil {
				log.Fatalf("failed to write entry: %v", err)
			}
		}
	},
}

var auditTrimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Drop records beyond the configured retention caps",
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

		runTrim(cmd.Context(), deps.Audit, deps.Logger)
	},
}

func init() {
	auditTailCmd.Flags().IntVarP(&auditTailLimit, "limit", "n", 20, "Number of entries to print")
	auditTailCmd.Flags().StringVar(&auditTailAction, "action", "", "Only print entries with this action")

	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditTrimCmd)
}
