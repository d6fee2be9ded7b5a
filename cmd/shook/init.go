package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shook/internal/install"
)

var (
	initConfig   = install.NewConfig()
	githubAPI    string
	installLog   string
	allowNonRoot bool
	initVerbose  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up shook for a repository checkout",
	Long: `Set up shook on this server.

Missing values are prompted for when stdin is a terminal. This command:
- Clones the repository as --username when --repo-path does not exist (optional)
- Writes shook.yaml into the checkout
- Stores the webhook secret in an environment file read by the service
- Installs the systemd unit for shook serve
- Registers the repository webhook on GitHub (optional, needs a token)`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	c := initConfig

	f.StringVar(&c.Username, "username", "", "User that owns the checkout and runs git")
	f.StringVar(&c.RepoPath, "repo-path", "", "Path to the repository checkout")
	f.StringVar(&c.Remote, "remote", "", "Remote to pull from (default: origin)")
	f.StringVar(&c.Branch, "branch", "", "Branch to pull (default: main)")
	f.StringVar(&c.SystemName, "system-name", "", "systemd service to restart after a pull")
	f.StringVar(&c.UpdateEvents, "update-events", "", "Comma separated events that trigger a deploy (default: push)")
	f.StringVar(&c.Addr, "addr", "", "Unix socket path or host:port (default: "+install.DefaultAddr+")")
	f.StringVar(&c.SocketGroup, "socket-group", "", "Group owning the unix socket (default: www-data)")
	f.StringVar(&c.SocketUser, "socket-user", "", "User owning the unix socket (default: www-data)")
	f.StringVar(&c.PreRestartCommand, "pre-restart-command", "", "Command run between pull and restart")

	f.StringVar(&c.CloneURL, "clone-url", "", "Clone from this URL when repo-path does not exist")
	f.StringVar(&c.GitHubRepo, "github-repo", "", "GitHub owner/repo to register the webhook on")
	f.StringVar(&c.GitHubToken, "github-token", "", "GitHub token for webhook registration (default: $GH_TOKEN or $GITHUB_TOKEN)")
	f.StringVar(&c.WebhookURL, "webhook-url", "", "Public URL GitHub delivers to")
	f.StringVar(&c.WebhookSecret, "webhook-secret", "", "Webhook secret (generated if not provided)")
	f.StringVar(&githubAPI, "github-api", "", "GitHub Enterprise API URL")

	f.StringVar(&c.BinaryPath, "binary", c.BinaryPath, "shook binary the unit runs")
	f.StringVar(&c.ServicePath, "service-path", c.ServicePath, "Where to install the systemd unit")
	f.StringVar(&c.EnvPath, "env-file", c.EnvPath, "Where to store the webhook secret")
	f.StringVar(&c.DBPath, "db", c.DBPath, "Delivery history database used by the unit")
	f.BoolVarP(&c.AssumeYes, "yes", "y", false, "Replace existing files without asking")

	f.StringVar(&installLog, "install-log", "", "Append command output to this file")
	f.BoolVar(&allowNonRoot, "allow-non-root", false, "Do not require root (for custom paths)")
	f.BoolVarP(&initVerbose, "verbose", "v", false, "Verbose output")
}

func runInit(cmd *cobra.Command, args []string) error {
	if os.Geteuid() != 0 && !allowNonRoot {
		return fmt.Errorf("init must be run as root (use sudo), or pass --allow-non-root")
	}

	initConfig.LoadFromEnv()

	installer := install.New(initConfig, initVerbose)
	if githubAPI != "" {
		installer.WithGitHubAPI(githubAPI)
	}
	if installLog != "" {
		if err := installer.WithLog(installLog); err != nil {
			return err
		}
	}

	if err := installer.Run(cmd.Context()); err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	return nil
}
