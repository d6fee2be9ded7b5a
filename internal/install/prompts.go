package install

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"shook/internal/config"
	"shook/internal/event"
)

// maxAttempts bounds re-prompting for a value that does not parse.
const maxAttempts = 5

// Prompter asks questions on a line-oriented terminal.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter reads answers from in and writes questions to out. A
// non-interactive Prompter answers every question with its default.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// StdioPrompter prompts on stdin/stdout when stdin is a terminal.
func StdioPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stdout, isInteractive())
}

// PromptForMissingValues interactively prompts for any missing config values
func (p *Prompter) PromptForMissingValues(c *Config) error {
	if !p.interactive {
		return nil
	}

	if c.Username == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Linux user that owns the checkout and runs git")
		c.Username = p.readValue("Enter username", "")
	}

	if c.RepoPath == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Path to the repository checkout")
		fmt.Fprintln(p.out, "Example: /srv/site")
		if path := p.readValue("Enter repo path", ""); path != "" {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			c.RepoPath = path
		}
	}

	if c.Remote == "" {
		c.Remote = p.readValue("Remote to track for changes", config.DefaultRemote)
	}
	if c.Branch == "" {
		c.Branch = p.readValue("Branch to track for changes", config.DefaultBranch)
	}

	if c.SystemName == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "systemd service restarted after each pull")
		c.SystemName = p.readValue("Enter service name", "")
	}

	if c.UpdateEvents == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Comma separated GitHub events that trigger a deploy")
		c.UpdateEvents = p.readParsed("Enter events", DefaultEvents, func(s string) error {
			_, err := event.ParseKinds(s)
			return err
		})
	}

	if c.Addr == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Address to serve on (unix socket path or host:port)")
		c.Addr = p.readParsed("Enter address", DefaultAddr, func(s string) error {
			_, err := config.ParseAddr(s)
			return err
		})
	}

	if addr, err := config.ParseAddr(c.Addr); err == nil && addr.IsUnix() {
		if c.SocketGroup == "" {
			c.SocketGroup = p.readValue("Group to put the socket under", DefaultSocketGroup)
		}
		if c.SocketUser == "" {
			c.SocketUser = p.readValue("User to put the socket under", DefaultSocketUser)
		}
	}

	return nil
}

// PromptForClone asks whether to clone a missing repository and from where.
func (p *Prompter) PromptForClone(c *Config) bool {
	if c.CloneURL != "" {
		return true
	}
	if !p.interactive || !p.Confirm(fmt.Sprintf("%s does not exist. Clone the repository?", c.RepoPath), false) {
		return false
	}
	c.CloneURL = p.readValue("Repository URL", "")
	return c.CloneURL != ""
}

// PromptForGitHub asks for the optional webhook registration settings.
func (p *Prompter) PromptForGitHub(c *Config) {
	if !p.interactive || c.GitHubToken == "" {
		return
	}
	if c.GitHubRepo == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "GitHub repository (owner/repo) to register the webhook on")
		fmt.Fprintln(p.out, "Leave empty to skip webhook registration")
		c.GitHubRepo = p.readValue("Enter owner/repo", "")
	}
	if c.GitHubRepo != "" && c.WebhookURL == "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Public URL GitHub delivers to (your reverse proxy in front of shook)")
		c.WebhookURL = p.readValue("Enter webhook URL", "")
	}
}

// Confirm asks a yes/no question. Non-interactive prompters return def.
func (p *Prompter) Confirm(prompt string, def bool) bool {
	if !p.interactive {
		return def
	}
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", prompt, hint)

	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

// readValue prompts for input with an optional default
func (p *Prompter) readValue(prompt, defaultValue string) string {
	if !p.interactive {
		return defaultValue
	}
	if defaultValue != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}

	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		return defaultValue
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

// readParsed re-prompts until check accepts the answer. After maxAttempts
// bad answers the default is used.
func (p *Prompter) readParsed(prompt, defaultValue string, check func(string) error) string {
	for i := 0; i < maxAttempts; i++ {
		v := p.readValue(prompt, defaultValue)
		err := check(v)
		if err == nil {
			return v
		}
		fmt.Fprintf(p.out, "  %v\n", err)
	}
	return defaultValue
}

// isInteractive checks if stdin is a terminal
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
