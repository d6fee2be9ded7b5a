package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shook/internal/deployment"
)

var deployOverrides overrideFlags

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run one deploy cycle now",
	Long: `Pull the tracked branch, run the pre-restart command if one is set,
and restart the service, exactly as a matching webhook delivery would.

The exit status is the failing step's exit code, or 1.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	deployOverrides.register(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := setupLogging(logFile, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()

	cfg, _, err := loadServerConfig(cmd, &deployOverrides, logger)
	if err != nil {
		return err
	}
	target, err := deployment.TargetFromConfig(cfg)
	if err != nil {
		return err
	}

	orch := deployment.NewOrchestrator(logger)
	if secret := webhookSecret(); secret != "" {
		orch.Redact = []string{secret}
	}

	fmt.Printf("Deploying %s in %s (%s/%s)\n", target.SystemName, target.RepoPath, target.Remote, target.Branch)
	report, err := orch.Deploy(cmd.Context(), target)
	printReport(os.Stdout, report, err)
	return err
}

func printReport(w io.Writer, report *deployment.Report, err error) {
	if report != nil {
		for _, s := range report.Steps {
			fmt.Fprintf(w, "  %-12s %-6s %8s  %s\n", s.Step, stepStatus(s), s.Duration.Round(time.Millisecond), s.Command)
		}
	}

	var stepErr *deployment.StepError
	if errors.As(err, &stepErr) && stepErr.Output != "" {
		fmt.Fprintf(w, "\nOutput of %s:\n%s\n", stepErr.Step, stepErr.Output)
	}
	if err == nil && report != nil {
		fmt.Fprintf(w, "\nDeploy finished in %s\n", report.Duration.Round(time.Millisecond))
	}
}

func stepStatus(s deployment.StepResult) string {
	if s.ExitCode == 0 {
		return "ok"
	}
	return "failed"
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var stepErr *deployment.StepError
	if errors.As(err, &stepErr) && stepErr.ExitCode > 0 {
		return stepErr.ExitCode
	}
	return 1
}
