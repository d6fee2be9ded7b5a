package deployment

import (
	"context"

	"shook/pkg/cmdutil"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks shook/internal/deployment Runner

// Runner starts an external process and waits for it.
type Runner interface {
	Run(ctx context.Context, opts cmdutil.ExecOptions, argv []string) (*cmdutil.Result, error)
}

// ProcessRunner runs commands with pkg/cmdutil.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, opts cmdutil.ExecOptions, argv []string) (*cmdutil.Result, error) {
	return cmdutil.Run(ctx, opts, argv)
}
