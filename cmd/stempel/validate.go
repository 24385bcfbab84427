package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stempel-app/stempel/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Stempel configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the effective configuration")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	cfg, err := config.Load(configPath)
	if err != nil {
		red.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		return err
	}

	green.Fprintf(os.Stdout, "Configuration is valid: %s\n", configPath)

	if validateDump {
		// Mask the secret before dumping.
		dump := *cfg
		if dump.Auth.JWTSecret != "" {
			dump.Auth.JWTSecret = "********"
		}

		encoded, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(encoded))
	}

	return nil
}
