package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// serviceUnit is the unit shook init installs.
const serviceUnit = "shook"

// systemctl runs systemctl with the terminal attached.
var systemctl = func(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Control the shook systemd service",
	Long: `Control the shook service installed by shook init.

Each subcommand runs systemctl against the shook unit.`,
}

func init() {
	for _, verb := range []struct {
		name  string
		short string
	}{
		{"start", "Start the shook service"},
		{"stop", "Stop the shook service"},
		{"restart", "Restart the shook service"},
		{"enable", "Start the shook service at boot"},
		{"disable", "Do not start the shook service at boot"},
		{"status", "Show the shook service status"},
	} {
		daemonCmd.AddCommand(daemonVerb(verb.name, verb.short))
	}
}

func daemonVerb(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := systemctl(verb, serviceUnit); err != nil {
				return fmt.Errorf("systemctl %s %s: %w", verb, serviceUnit, err)
			}
			return nil
		},
	}
}
