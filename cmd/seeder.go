package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/frahmantamala/hse-inspection/internal/inspection"
	"github.com/frahmantamala/hse-inspection/internal/notification"
	"github.com/frahmantamala/hse-inspection/internal/store"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/spf13/cobra"
)

// demoAdminPIN is the well-known administrator credential of a fresh install.
const demoAdminPIN = "1234"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with sample data",
	Long:  `Seed the store with demo users, a form template and a notification schedule for development and testing purposes.`,
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

		seeded, err := seedData(cmd.Context(), deps, clearData)
		if err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		if len(seeded) == 0 {
			fmt.Println("users already exist; run with --clear to reseed")
			return
		}
		for _, s := range seeded {
			fmt.Printf("Seeded %-10s %-20s PIN %s\n", s.Role, s.Name, s.PIN)
		}
	},
}

type seededUser struct {
	Name string
	Role string
	PIN  string
}

// seedData provisions the demo data set. It does nothing when users exist and
// clear is false.
func seedData(ctx context.Context, deps *Dependencies, clear bool) ([]seededUser, error) {
	if clear {
		for _, c := range store.Collections {
			if err := deps.Store.Remove(ctx, c); err != nil {
				return nil, err
			}
		}
	}

	existing, err := deps.Users.List(ctx, user.ListFilter{})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	system := user.System()
	var out []seededUser

	admin, err := deps.Users.CreateWithPIN(ctx, system, user.CreateUserRequest{
		Name:       "Site Administrator",
		Role:       "admin",
		Department: "HSE",
	}, demoAdminPIN)
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	out = append(out, seededUser{Name: admin.Name, Role: string(admin.Role), PIN: demoAdminPIN})

	for _, req := range []user.CreateUserRequest{
		{Name: "Field Inspector", Role: "inspector", Department: "Operations"},
		{Name: "Security Analyst", Role: "devsecops", Department: "IT Security"},
	} {
		u, plain, err := deps.Users.Create(ctx, system, req)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", req.Role, err)
		}
		out = append(out, seededUser{Name: u.Name, Role: string(u.Role), PIN: plain})
	}

	schema, _ := json.Marshal(map[string]any{
		"sections": []map[string]any{
			{"title": "PPE", "fields": []string{"helmet", "boots", "gloves"}},
			{"title": "Housekeeping", "fields": []string{"walkways clear", "spill kits stocked"}},
		},
	})
	if _, err := deps.Inspections.SaveTemplate(ctx, admin, "site-walk", inspection.SaveTemplateRequest{
		Name:        "Site walk",
		Description: "Daily site safety walk",
		Schema:      schema,
	}); err != nil {
		return nil, fmt.Errorf("seed form template: %w", err)
	}

	if _, err := deps.Notifications.Create(ctx, admin, notification.CreateScheduleRequest{
		Name:       "Daily safety summary",
		Type:       string(notification.TypeDaily),
		Recipients: []string{admin.ID},
	}); err != nil {
		return nil, fmt.Errorf("seed notification schedule: %w", err)
	}

	return out, nil
}
