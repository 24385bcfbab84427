package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stempel-app/stempel/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and storage connectivity",
	Long:  `Load the configuration, open the configured storage backend, and report whether the service could start.`,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	cyan.Fprintf(os.Stdout, "Checking %s\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		red.Fprintf(os.Stdout, "  config: %v\n", err)
		return err
	}
	green.Fprintln(os.Stdout, "  config: ok")

	store, err := openStorage(cfg.Storage)
	if err != nil {
		red.Fprintf(os.Stdout, "  storage (%s): %v\n", cfg.Storage.Type, err)
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accounts, err := store.Accounts().List(ctx)
	if err != nil {
		red.Fprintf(os.Stdout, "  storage (%s): %v\n", cfg.Storage.Type, err)
		return err
	}
	green.Fprintf(os.Stdout, "  storage (%s): ok, %d account(s)\n", cfg.Storage.Type, len(accounts))

	fmt.Fprintln(os.Stdout)
	green.Fprintln(os.Stdout, "All checks passed")

	return nil
}
