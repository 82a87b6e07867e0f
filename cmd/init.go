package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fnhost/internal/users"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively bootstrap a storage root with its first admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	path := flagPath
	host := flagHost
	var adminName string
	var tokenDays string = "365"

	usersPath := filepath.Join(path, "users.json")
	if _, err := os.Stat(usersPath); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite an initialized storage root", usersPath)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Storage root directory").Value(&path),
			huh.NewInput().Title("Routing host (subdomain suffix)").Value(&host),
			huh.NewInput().Title("Initial admin username").Value(&adminName),
			huh.NewInput().Title("Admin token lifetime, in days").Value(&tokenDays),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("running onboarding wizard: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}

	um, err := users.NewManager(path, nil)
	if err != nil {
		return fmt.Errorf("initializing user manager: %w", err)
	}
	admin := users.NewUser(adminName, []users.Group{users.PermissionGroup(users.PermissionAdmin)})
	if err := um.Add(admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	var days float64
	if _, err := fmt.Sscanf(tokenDays, "%f", &days); err != nil || days <= 0 {
		days = 365
	}
	token, err := um.AddToken(adminName, time.Duration(days*float64(24*time.Hour)))
	if err != nil {
		return fmt.Errorf("issuing admin token: %w", err)
	}
	if err := um.Save(); err != nil {
		return fmt.Errorf("saving user manager: %w", err)
	}

	fmt.Printf("Initialized %s\nAdmin user %q token: %s\n", path, adminName, token)
	return nil
}
