package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stempel-app/stempel/internal/auth"
	"github.com/stempel-app/stempel/internal/config"
)

var (
	useraddName     string
	useraddEmail    string
	useraddPassword string
)

var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an account from the command line",
	Long: `Create an account directly against the configured storage, bypassing the
HTTP API. Useful for bootstrapping the first account on a fresh install.`,
	Example: `  stempel -c config.yaml useradd --name "Alice" --email alice@example.com --password secret1`,
	RunE:    runUseradd,
}

func init() {
	useraddCmd.Flags().StringVar(&useraddName, "name", "", "Display name (required)")
	useraddCmd.Flags().StringVar(&useraddEmail, "email", "", "Email address (required)")
	useraddCmd.Flags().StringVar(&useraddPassword, "password", "", "Password (required)")
	_ = useraddCmd.MarkFlagRequired("name")
	_ = useraddCmd.MarkFlagRequired("email")
	_ = useraddCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(useraddCmd)
}

func runUseradd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(useraddPassword) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	authService := auth.NewService(store.Accounts(), auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		TokenExpiration: parseDuration(cfg.Auth.TokenExpiration, auth.DefaultTokenExpiration),
		BcryptCost:      cfg.Auth.BcryptCost,
	})

	account, err := authService.Register(context.Background(), useraddName, useraddEmail, useraddPassword)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			return fmt.Errorf("email %s is already registered", useraddEmail)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(os.Stdout, "Account created\n")
	fmt.Fprintf(os.Stdout, "  ID:    %s\n", account.ID)
	fmt.Fprintf(os.Stdout, "  Name:  %s\n", account.Name)
	fmt.Fprintf(os.Stdout, "  Email: %s\n", account.Email)

	return nil
}
