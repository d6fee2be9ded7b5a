package install

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shook/internal/config"
)

type recordedCommand struct {
	dir  string
	argv []string
}

type fakeCommands struct {
	mu    sync.Mutex
	calls []recordedCommand
	// onRun lets a test create the clone target.
	onRun func(argv []string)
}

func (f *fakeCommands) run(dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	argv := append([]string{name}, args...)
	f.calls = append(f.calls, recordedCommand{dir: dir, argv: argv})
	if f.onRun != nil {
		f.onRun(argv)
	}
	return nil, nil
}

func makeRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	return dir
}

func newTestInstaller(t *testing.T, c *Config, answers string) (*Installer, *fakeCommands, *bytes.Buffer) {
	t.Helper()
	etc := t.TempDir()
	if c.ServicePath == "" {
		c.ServicePath = filepath.Join(etc, "shook.service")
	}
	if c.EnvPath == "" {
		c.EnvPath = filepath.Join(etc, "shook", "shook.env")
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}

	out := &bytes.Buffer{}
	cmds := &fakeCommands{}
	i := &Installer{
		config:   c,
		prompter: NewPrompter(strings.NewReader(answers), out, answers != ""),
		progress: progress{out: out},
		out:      out,
		run:      cmds.run,
	}
	return i, cmds, out
}

func TestInstaller_Run(t *testing.T) {
	repo := makeRepo(t)
	c := &Config{
		Username:     "deploy",
		RepoPath:     repo,
		SystemName:   "site",
		UpdateEvents: "push",
	}
	i, cmds, out := newTestInstaller(t, c, "")
	i.hasSystemd = true

	require.NoError(t, i.Run(context.Background()))

	cfg, err := config.Load(filepath.Join(repo, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "deploy", cfg.Username)
	assert.Equal(t, config.Unix(DefaultAddr), cfg.Addr)
	assert.Equal(t, "www-data", cfg.SocketGroup)

	env, err := os.ReadFile(c.EnvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(env), SecretEnvVar+"="))
	info, err := os.Stat(c.EnvPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	unit, err := os.ReadFile(c.ServicePath)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "--config "+filepath.Join(repo, config.FileName))
	assert.Contains(t, string(unit), "EnvironmentFile=-"+c.EnvPath)

	require.Len(t, cmds.calls, 1)
	assert.Equal(t, []string{"systemctl", "daemon-reload"}, cmds.calls[0].argv)

	// No GitHub settings: the generated secret is printed for manual setup.
	assert.Contains(t, out.String(), c.WebhookSecret)
}

func TestInstaller_Run_ReusesExistingSecret(t *testing.T) {
	repo := makeRepo(t)
	c := &Config{Username: "deploy", RepoPath: repo, SystemName: "site", AssumeYes: true}
	i, _, _ := newTestInstaller(t, c, "")

	require.NoError(t, os.MkdirAll(filepath.Dir(c.EnvPath), 0750))
	require.NoError(t, os.WriteFile(c.EnvPath, []byte(SecretEnvVar+"=keep-me\n"), 0600))

	require.NoError(t, i.Run(context.Background()))
	assert.Equal(t, "keep-me", c.WebhookSecret)
}

func TestInstaller_Run_RefusesToReplaceConfig(t *testing.T) {
	repo := makeRepo(t)
	existing := filepath.Join(repo, config.FileName)
	require.NoError(t, os.WriteFile(existing, []byte("username: someone\n"), 0640))

	c := &Config{Username: "deploy", RepoPath: repo, SystemName: "site"}
	i, _, _ := newTestInstaller(t, c, "")

	err := i.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errAborted)

	data, _ := os.ReadFile(existing)
	assert.Equal(t, "username: someone\n", string(data))
}

func TestInstaller_Run_ClonesMissingRepo(t *testing.T) {
	repo := filepath.Join(t.TempDir(), "apps", "site")
	c := &Config{
		Username:   "deploy",
		RepoPath:   repo,
		SystemName: "site",
		CloneURL:   "https://github.com/octo/site.git",
	}
	i, cmds, _ := newTestInstaller(t, c, "")
	cmds.onRun = func(argv []string) {
		if argv[0] == "su" {
			os.MkdirAll(filepath.Join(repo, ".git"), 0755)
		}
	}

	require.NoError(t, i.Run(context.Background()))

	var clone *recordedCommand
	for n := range cmds.calls {
		if cmds.calls[n].argv[0] == "su" {
			clone = &cmds.calls[n]
		}
	}
	require.NotNil(t, clone, "expected a clone, got %v", cmds.calls)
	assert.Equal(t, filepath.Dir(repo), clone.dir)
	assert.Equal(t, []string{"su", "deploy", "-s", "/bin/sh", "-c",
		"git clone https://github.com/octo/site.git " + repo}, clone.argv)
}

func TestInstaller_Run_MissingRepoWithoutClone(t *testing.T) {
	c := &Config{Username: "deploy", RepoPath: filepath.Join(t.TempDir(), "nope"), SystemName: "site"}
	i, _, _ := newTestInstaller(t, c, "")

	err := i.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--clone-url")
}

// fakeGitHub serves the hook endpoints of the GitHub API.
type fakeGitHub struct {
	mu      sync.Mutex
	hooks   []map[string]interface{}
	created []map[string]interface{}
	edited  map[string]map[string]interface{}
	auth    []string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		if len(body) > 0 {
			require.NoError(t, json.Unmarshal(body, &req))
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/site/hooks":
			json.NewEncoder(w).Encode(f.hooks)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/octo/site/hooks":
			f.created = append(f.created, req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 1})
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/repos/octo/site/hooks/"):
			if f.edited == nil {
				f.edited = map[string]map[string]interface{}{}
			}
			f.edited[strings.TrimPrefix(r.URL.Path, "/repos/octo/site/hooks/")] = req
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 7})
		default:
			http.NotFound(w, r)
		}
	})
}

func githubConfig(t *testing.T) *Config {
	return &Config{
		Username:      "deploy",
		RepoPath:      makeRepo(t),
		SystemName:    "site",
		UpdateEvents:  "push,release",
		GitHubRepo:    "octo/site",
		GitHubToken:   "ghp_test",
		WebhookURL:    "https://deploy.example.com/",
		WebhookSecret: "a-long-enough-webhook-secret-for-tests-0001",
	}
}

func TestInstaller_CreatesWebhook(t *testing.T) {
	gh := &fakeGitHub{}
	srv := httptest.NewServer(gh.handler(t))
	defer srv.Close()

	i, _, _ := newTestInstaller(t, githubConfig(t), "")
	i.WithGitHubAPI(srv.URL)

	require.NoError(t, i.Run(context.Background()))

	require.Len(t, gh.created, 1)
	created := gh.created[0]
	assert.Equal(t, []interface{}{"push", "release"}, created["events"])
	assert.Equal(t, true, created["active"])
	cfg := created["config"].(map[string]interface{})
	assert.Equal(t, "https://deploy.example.com/", cfg["url"])
	assert.Equal(t, "json", cfg["content_type"])
	assert.Equal(t, "a-long-enough-webhook-secret-for-tests-0001", cfg["secret"])
	assert.Contains(t, gh.auth, "Bearer ghp_test")
}

func TestInstaller_UpdatesExistingWebhook(t *testing.T) {
	gh := &fakeGitHub{hooks: []map[string]interface{}{
		{"id": 3, "config": map[string]interface{}{"url": "https://elsewhere.example.com/"}},
		{"id": 7, "config": map[string]interface{}{"url": "https://deploy.example.com/"}},
	}}
	srv := httptest.NewServer(gh.handler(t))
	defer srv.Close()

	i, _, _ := newTestInstaller(t, githubConfig(t), "")
	i.WithGitHubAPI(srv.URL)

	require.NoError(t, i.Run(context.Background()))

	assert.Empty(t, gh.created)
	require.Contains(t, gh.edited, "7")
	assert.Equal(t, []interface{}{"push", "release"}, gh.edited["7"]["events"])
}

func TestInstaller_SkipsWebhookWithoutToken(t *testing.T) {
	c := githubConfig(t)
	c.GitHubToken = ""
	i, _, out := newTestInstaller(t, c, "")

	require.NoError(t, i.Run(context.Background()))
	assert.Contains(t, out.String(), "[SKIP]")
}
