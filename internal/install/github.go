package install

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"shook/internal/event"
)

// createGitHubClient creates an authenticated GitHub client. baseURL
// overrides the API endpoint (GitHub Enterprise); empty means github.com.
func createGitHubClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	if token == "" {
		return nil, nil
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("github api url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// createWebhook registers the repository webhook for update_events. A hook
// already pointing at the webhook URL is updated in place so its events
// and secret match this install.
func (i *Installer) createWebhook(ctx context.Context) error {
	c := i.config
	if c.GitHubToken == "" || c.GitHubRepo == "" || c.WebhookURL == "" {
		i.progress.skip("GitHub webhook registration (needs token, repo and URL)")
		return nil
	}

	client, err := createGitHubClient(ctx, c.GitHubToken, i.githubAPI)
	if err != nil {
		return err
	}
	owner, repo, err := c.OwnerRepo()
	if err != nil {
		return err
	}
	kinds, err := event.ParseKinds(c.UpdateEvents)
	if err != nil {
		return err
	}
	events := make([]string, len(kinds))
	for n, k := range kinds {
		events[n] = k.String()
	}

	hookConfig := map[string]interface{}{
		"url":          c.WebhookURL,
		"content_type": "json",
		"secret":       c.WebhookSecret,
		"insecure_ssl": "0",
	}
	active := true
	hookReq := &github.Hook{
		Events: events,
		Active: &active,
		Config: hookConfig,
	}

	// Check if webhook already exists
	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := client.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return fmt.Errorf("listing webhooks: %w", err)
		}
		for _, hook := range hooks {
			if hook.Config == nil {
				continue
			}
			if u, ok := hook.Config["url"].(string); ok && u == c.WebhookURL {
				i.progress.begin(fmt.Sprintf("Updating GitHub webhook %d", hook.GetID()))
				if _, _, err := client.Repositories.EditHook(ctx, owner, repo, hook.GetID(), hookReq); err != nil {
					i.progress.fail()
					return fmt.Errorf("updating webhook: %w", err)
				}
				i.progress.ok()
				return nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	i.progress.begin("Creating GitHub webhook")
	if _, _, err := client.Repositories.CreateHook(ctx, owner, repo, hookReq); err != nil {
		i.progress.fail()
		return fmt.Errorf("creating webhook: %w", err)
	}
	i.progress.ok()
	return nil
}
