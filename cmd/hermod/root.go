package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hermodbot/hermod/internal/session"
	"github.com/hermodbot/hermod/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the explicit --config path, or the XDG config
// file when one exists. Empty means defaults plus flags only.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	candidate := filepath.Join(xdg.ConfigDir(), "hermod.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// NewRootCmd creates the root command for the hermod CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hermod",
		Short: "Hermod - a plugin-driven chat bot engine",
		Long: `Hermod is a chat bot engine with hot-reloadable plugins,
layered admission control, and a passive-handler pipeline.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewGenKeyCmd())

	return cmd
}

// NewGenKeyCmd creates the genkey subcommand.
func NewGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a session encryption key",
		Long:  `Generate a random 256-bit key in the hex form accepted by --session-key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := session.GenerateKey()
			if err != nil {
				return err
			}
			cmd.Println(key)
			return nil
		},
	}
}
