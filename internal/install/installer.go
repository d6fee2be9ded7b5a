// Package install implements shook init: it gathers the server settings,
// optionally clones the repository, writes shook.yaml and the secret
// environment file, installs the systemd unit and registers the GitHub
// webhook.
package install

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Installer manages the installation process
type Installer struct {
	config   *Config
	prompter *Prompter
	progress progress
	out      io.Writer
	verbose  bool

	run        commandFunc
	hasSystemd bool
	githubAPI  string
	log        io.Writer

	generatedSecret bool
}

// New creates a new installer instance
func New(config *Config, verbose bool) *Installer {
	return &Installer{
		config:     config,
		prompter:   StdioPrompter(),
		progress:   progress{out: os.Stdout},
		out:        os.Stdout,
		verbose:    verbose,
		run:        execCommand,
		hasSystemd: checkSystemd(),
	}
}

// WithGitHubAPI points webhook registration at a GitHub Enterprise API.
func (i *Installer) WithGitHubAPI(baseURL string) *Installer {
	i.githubAPI = baseURL
	return i
}

// WithLog appends command output to the file at path.
func (i *Installer) WithLog(path string) error {
	f, err := openInstallLog(path)
	if err != nil {
		return err
	}
	i.log = f
	return nil
}

// Run executes the full installation process
func (i *Installer) Run(ctx context.Context) error {
	c := i.config
	if closer, ok := i.log.(io.Closer); ok {
		defer closer.Close()
	}

	if err := i.prompter.PromptForMissingValues(c); err != nil {
		return err
	}
	c.FillDefaults()
	if err := c.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(i.out)
	fmt.Fprintf(i.out, "Setting up shook for %s (%s)\n", c.SystemName, c.RepoPath)
	fmt.Fprintln(i.out)

	if err := i.ensureRepo(); err != nil {
		return fmt.Errorf("cloning repository: %w", err)
	}

	cfg, err := c.ServerConfig()
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	i.prompter.PromptForGitHub(c)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"writing shook.yaml", func() error { return i.writeConfig(cfg) }},
		{"writing secret", i.writeSecret},
		{"installing service", i.installService},
		{"creating webhook", func() error { return i.createWebhook(ctx) }},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	i.printSuccessSummary()
	return nil
}

func (i *Installer) printSuccessSummary() {
	c := i.config
	out := i.out

	fmt.Fprintln(out)
	fmt.Fprintln(out, "==========================================")
	fmt.Fprintf(out, "  %sshook setup complete%s\n", colorGreen, colorReset)
	fmt.Fprintln(out, "==========================================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Config:     %s\n", c.ConfigPath())
	fmt.Fprintf(out, "  Secret:     %s\n", c.EnvPath)
	fmt.Fprintf(out, "  Unit:       %s\n", c.ServicePath)
	fmt.Fprintf(out, "  Database:   %s\n", c.DBPath)
	fmt.Fprintf(out, "  Listening:  %s\n", c.Addr)
	fmt.Fprintf(out, "  Events:     %s\n", c.UpdateEvents)
	if i.generatedSecret && (c.GitHubToken == "" || c.GitHubRepo == "") {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Webhook secret (enter it in the repository's webhook settings):")
		fmt.Fprintf(out, "  %s\n", c.WebhookSecret)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Service Management:")
	fmt.Fprintln(out, "  Enable:     shook daemon enable")
	fmt.Fprintln(out, "  Start:      shook daemon start")
	fmt.Fprintln(out, "  Logs:       journalctl -u shook -f")
	fmt.Fprintln(out)
}
