// Package deployment runs the pull then restart cycle for the tracked
// repository and serializes overlapping cycles.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"strings"
	"time"

	"shook/internal/config"
	"shook/pkg/cmdutil"
)

// Step names one stage of a deploy cycle.
type Step string

const (
	StepPull       Step = "pull"
	StepPreRestart Step = "pre_restart"
	StepRestart    Step = "restart"
)

var (
	ErrPullFailed       = errors.New("pull failed")
	ErrPreRestartFailed = errors.New("pre-restart command failed")
	ErrRestartFailed    = errors.New("restart failed")
)

// failure returns the sentinel error for a failed step.
func (s Step) failure() error {
	switch s {
	case StepPull:
		return ErrPullFailed
	case StepPreRestart:
		return ErrPreRestartFailed
	case StepRestart:
		return ErrRestartFailed
	}
	return fmt.Errorf("%s failed", string(s))
}

// maxOutputBytes bounds the command output kept on a StepError.
const maxOutputBytes = 4096

// gitEnv keeps git from waiting on a credential prompt.
var gitEnv = []string{
	"GIT_TERMINAL_PROMPT=0",
	"GIT_SSH_COMMAND=ssh -o BatchMode=yes",
}

// StepError describes a failed step. errors.Is matches both the step
// sentinel (ErrPullFailed, ErrRestartFailed, ...) and the underlying cause.
type StepError struct {
	Step     Step
	Command  string
	ExitCode int
	Signal   string
	TimedOut bool
	Output   string

	cause error
}

func (e *StepError) Error() string {
	var how string
	switch {
	case e.TimedOut:
		how = "timed out"
	case e.Signal != "":
		how = "killed by " + e.Signal
	case e.ExitCode >= 0:
		how = fmt.Sprintf("exit code %d", e.ExitCode)
	case e.cause != nil:
		how = e.cause.Error()
	default:
		how = "failed"
	}
	return fmt.Sprintf("%v: %s: %s", e.Step.failure(), e.Command, how)
}

func (e *StepError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Step.failure()}
	}
	return []error{e.Step.failure(), e.cause}
}

// Target is everything a deploy cycle needs, copied out of the config.
type Target struct {
	Username   string
	RepoPath   string
	Remote     string
	Branch     string
	SystemName string
	PreRestart []string

	PullTimeout       time.Duration
	PreRestartTimeout time.Duration
	RestartTimeout    time.Duration
}

// TargetFromConfig builds a Target from cfg.
func TargetFromConfig(cfg *config.ServerConfig) (Target, error) {
	pre, err := cfg.PreRestart()
	if err != nil {
		return Target{}, fmt.Errorf("pre_restart_command: %w", err)
	}
	return Target{
		Username:          cfg.Username,
		RepoPath:          cfg.RepoPath,
		Remote:            cfg.Remote,
		Branch:            cfg.Branch,
		SystemName:        cfg.SystemName,
		PreRestart:        pre,
		PullTimeout:       cfg.PullTimeoutDuration(),
		PreRestartTimeout: cfg.PreRestartTimeoutDuration(),
		RestartTimeout:    cfg.RestartTimeoutDuration(),
	}, nil
}

// Key identifies the working directory and unit a cycle owns.
func (t Target) Key() string {
	return t.RepoPath + "\x00" + t.SystemName
}

// StepResult records one completed or failed step.
type StepResult struct {
	Step     Step
	Command  string
	ExitCode int
	Duration time.Duration
}

// Report is the outcome of a cycle.
type Report struct {
	Steps    []StepResult
	Duration time.Duration
}

// ExitCode returns the exit code of the last step that ran, or 0.
func (r *Report) ExitCode() int {
	if r == nil || len(r.Steps) == 0 {
		return 0
	}
	return r.Steps[len(r.Steps)-1].ExitCode
}

// Orchestrator runs deploy cycles. It does not serialize them; see Dispatcher.
type Orchestrator struct {
	Runner Runner
	Logger *slog.Logger
	// CurrentUser is the account the server runs as. Commands for any other
	// Username are wrapped in su.
	CurrentUser string
	// Redact lists strings scrubbed from captured output.
	Redact []string
}

// NewOrchestrator returns an Orchestrator running real processes.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{Runner: ProcessRunner{}, Logger: logger}
	if u, err := user.Current(); err == nil {
		o.CurrentUser = u.Username
	}
	return o
}

// Deploy pulls, runs the optional pre-restart command, then restarts the
// service. A failed step ends the cycle; nothing is retried or rolled back.
func (o *Orchestrator) Deploy(ctx context.Context, t Target) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	steps := o.plan(t)
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("deploy cancelled before %s: %w", s.step, err)
		}
		sr, err := o.runStep(ctx, s)
		report.Steps = append(report.Steps, sr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

type plannedStep struct {
	step Step
	argv []string
	opts cmdutil.ExecOptions
}

func (o *Orchestrator) plan(t Target) []plannedStep {
	steps := []plannedStep{{
		step: StepPull,
		argv: o.asUser(t.Username, []string{"git", "pull", t.Remote, t.Branch}),
		opts: cmdutil.ExecOptions{Dir: t.RepoPath, Timeout: t.PullTimeout, Env: gitEnv, CombinedOutput: true},
	}}
	if len(t.PreRestart) > 0 {
		steps = append(steps, plannedStep{
			step: StepPreRestart,
			argv: o.asUser(t.Username, t.PreRestart),
			opts: cmdutil.ExecOptions{Dir: t.RepoPath, Timeout: t.PreRestartTimeout, CombinedOutput: true},
		})
	}
	return append(steps, plannedStep{
		step: StepRestart,
		argv: []string{"systemctl", "restart", t.SystemName},
		opts: cmdutil.ExecOptions{Timeout: t.RestartTimeout, CombinedOutput: true},
	})
}

func (o *Orchestrator) runStep(ctx context.Context, p plannedStep) (StepResult, error) {
	step := p.step
	cmdStr := cmdutil.FormatCommand(p.argv)
	o.logger().Info("deploy step started", "step", step, "command", cmdStr)

	res, err := o.Runner.Run(ctx, p.opts, p.argv)
	sr := StepResult{Step: step, Command: cmdStr, ExitCode: -1}
	if res != nil {
		sr.ExitCode = res.ExitCode
		sr.Duration = res.Duration
	}
	if err == nil && res.OK() {
		o.logger().Info("deploy step finished", "step", step, "duration_ms", sr.Duration.Milliseconds())
		return sr, nil
	}

	se := &StepError{Step: step, Command: cmdStr, ExitCode: -1, cause: err}
	if res != nil {
		se.ExitCode = res.ExitCode
		se.Signal = res.Signal
		se.TimedOut = res.TimedOut
		se.Output = tail(string(cmdutil.SanitizeOutput(res.Output, o.Redact)), maxOutputBytes)
	}
	o.logger().Error("deploy step failed",
		"step", step,
		"result", res.Describe(),
		"exit_code", se.ExitCode,
		"signal", se.Signal,
		"timed_out", se.TimedOut,
		"output", se.Output)
	return sr, se
}

// asUser wraps argv so it runs as username when that differs from the
// server's own account.
func (o *Orchestrator) asUser(username string, argv []string) []string {
	if username == "" || username == o.CurrentUser {
		return argv
	}
	return []string{"su", username, "-s", "/bin/sh", "-c", cmdutil.QuoteCommand(argv)}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
