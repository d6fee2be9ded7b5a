package cmdutil

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    ExecOptions
		cmd     []string
		wantErr bool
	}{
		{
			"successful command",
			ExecOptions{CombinedOutput: true},
			[]string{"echo", "hello"},
			false,
		},
		{
			"command with args",
			ExecOptions{CombinedOutput: true},
			[]string{"echo", "hello", "world"},
			false,
		},
		{
			"command that fails",
			ExecOptions{CombinedOutput: true},
			[]string{"ls", "/nonexistent/directory/path"},
			true,
		},
		{
			"empty command",
			ExecOptions{CombinedOutput: true},
			[]string{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(ctx, tt.opts, tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if result == nil {
					t.Fatal("Run() returned nil result for successful command")
				}
				if result.Duration == 0 {
					t.Error("Run() did not record execution duration")
				}
				if !result.OK() {
					t.Errorf("Run() result not OK: %s", result.Describe())
				}
			}
		})
	}
}

func TestRun_MissingBinary(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{CombinedOutput: true}, []string{"/nonexistent/binary"})
	if err == nil {
		t.Fatal("Run() should fail for a missing binary")
	}
	if result != nil {
		t.Errorf("Run() result = %+v, want nil for a process that never started", result)
	}
}

func TestRun_Timeout(t *testing.T) {
	opts := ExecOptions{
		Timeout:        100 * time.Millisecond,
		CombinedOutput: true,
	}
	result, err := Run(context.Background(), opts, []string{"sleep", "5"})
	if err == nil {
		t.Fatal("Run() should fail when the timeout elapses")
	}
	if result == nil {
		t.Fatal("Run() should return a result for a killed process")
	}
	if !result.TimedOut {
		t.Error("Result.TimedOut = false, want true")
	}
	if result.OK() {
		t.Error("Result.OK() = true for a timed out command")
	}
	if !strings.Contains(result.Describe(), "timed out") {
		t.Errorf("Describe() = %q, want it to mention the timeout", result.Describe())
	}
}

func TestRun_Signal(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{CombinedOutput: true}, []string{"sh", "-c", "kill -TERM $$"})
	if err == nil {
		t.Fatal("Run() should fail for a signalled process")
	}
	if result.Signal == "" {
		t.Fatalf("Result.Signal is empty, exit code %d", result.ExitCode)
	}
	if result.ExitCode != -1 {
		t.Errorf("Result.ExitCode = %d, want -1 for a signalled process", result.ExitCode)
	}
	if !strings.Contains(result.Describe(), "signal") {
		t.Errorf("Describe() = %q, want it to mention the signal", result.Describe())
	}
}

func TestParseCommandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			"simple command",
			"git status",
			[]string{"git", "status"},
			false,
		},
		{
			"command with quoted argument",
			"git commit -m \"my message\"",
			[]string{"git", "commit", "-m", "my message"},
			false,
		},
		{
			"command with single quotes",
			"echo 'hello world'",
			[]string{"echo", "hello world"},
			false,
		},
		{
			"command with escaped quotes",
			"echo \"hello \\\"world\\\"\"",
			[]string{"echo", "hello \"world\""},
			false,
		},
		{
			"unterminated quote",
			"echo 'hello",
			nil,
			true,
		},
		{
			"empty string",
			"",
			nil,
			true,
		},
		{
			"whitespace only",
			"   ",
			nil,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCommandString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !equalStringSlices(got, tt.want) {
				t.Errorf("ParseCommandString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuoteCommand_RoundTrip(t *testing.T) {
	inputs := [][]string{
		{"git", "pull", "origin", "main"},
		{"env", "GIT_SSH_COMMAND=ssh -o BatchMode=yes", "git", "pull"},
		{"echo", "it's", "$HOME", "a;b"},
	}

	for _, parts := range inputs {
		quoted := QuoteCommand(parts)
		got, err := ParseCommandString(quoted)
		if err != nil {
			t.Fatalf("ParseCommandString(%q) error: %v", quoted, err)
		}
		if !equalStringSlices(got, parts) {
			t.Errorf("round trip of %v through %q = %v", parts, quoted, got)
		}
	}
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{
			"simple command",
			[]string{"git", "status"},
			"git status",
		},
		{
			"command with spaces in argument",
			[]string{"git", "commit", "-m", "my message"},
			"git commit -m 'my message'",
		},
		{
			"empty command",
			[]string{},
			"<empty command>",
		},
		{
			"single command",
			[]string{"ls"},
			"ls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCommand(tt.input)
			// The exact quoting format may vary, so just check it's not empty
			// and contains the command parts
			if len(tt.input) > 0 && !strings.Contains(got, tt.input[0]) {
				t.Errorf("FormatCommand() = %v, should contain %v", got, tt.input[0])
			}
			if len(tt.input) == 0 && got != "<empty command>" {
				t.Errorf("FormatCommand() = %v, want %v", got, "<empty command>")
			}
		})
	}
}

func TestSanitizeOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  []byte
		secrets []string
		want    string
	}{
		{
			"redact single secret",
			[]byte("Password: mysecret123"),
			[]string{"mysecret123"},
			"Password: ***REDACTED***",
		},
		{
			"redact multiple secrets",
			[]byte("user: admin, password: secret1, token: secret2"),
			[]string{"secret1", "secret2"},
			"user: admin, password: ***REDACTED***, token: ***REDACTED***",
		},
		{
			"no secrets",
			[]byte("public information"),
			[]string{},
			"public information",
		},
		{
			"empty secret",
			[]byte("some output"),
			[]string{""},
			"some output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeOutput(tt.output, tt.secrets)
			if string(got) != tt.want {
				t.Errorf("SanitizeOutput() = %v, want %v", string(got), tt.want)
			}
		})
	}
}

func TestExecOptions(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("with working directory", func(t *testing.T) {
		opts := ExecOptions{
			Dir:            tmpDir,
			CombinedOutput: true,
		}
		result, err := Run(ctx, opts, []string{"pwd"})
		if err != nil {
			t.Fatalf("Run() with Dir option error = %v", err)
		}
		if !strings.Contains(string(result.Output), tmpDir) {
			t.Errorf("pwd output %q does not mention %s", result.Output, tmpDir)
		}
	})

	t.Run("with environment variables", func(t *testing.T) {
		opts := ExecOptions{
			Env:            []string{"TEST_VAR=test_value"},
			CombinedOutput: true,
		}
		result, err := Run(ctx, opts, []string{"env"})
		if err != nil {
			t.Fatalf("Run() with Env option error = %v", err)
		}
		if !strings.Contains(string(result.Output), "TEST_VAR=test_value") {
			t.Error("Run() did not set environment variable correctly")
		}
		if !strings.Contains(string(result.Output), "PATH=") {
			t.Error("Run() dropped the inherited environment")
		}
	})

	t.Run("separate stderr", func(t *testing.T) {
		result, err := Run(ctx, ExecOptions{}, []string{"sh", "-c", "echo out; echo err >&2; exit 3"})
		if err == nil {
			t.Fatal("Run() should fail for exit code 3")
		}
		if result.ExitCode != 3 {
			t.Errorf("Result.ExitCode = %d, want 3", result.ExitCode)
		}
		if strings.TrimSpace(string(result.Stdout)) != "out" {
			t.Errorf("Result.Stdout = %q, want \"out\"", result.Stdout)
		}
		if strings.TrimSpace(string(result.Stderr)) != "err" {
			t.Errorf("Result.Stderr = %q, want \"err\"", result.Stderr)
		}
	})
}

// Helper functions

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func BenchmarkParseCommandString(b *testing.B) {
	cmd := "git commit -m \"my message\""

	for i := 0; i < b.N; i++ {
		_, _ = ParseCommandString(cmd)
	}
}
