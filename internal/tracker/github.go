package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v66/github"
)

const maxPerPage = 100

// GitHubBackend files tickets as GitHub issues.
type GitHubBackend struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubBackend expects repo in "owner/repo" form.
func NewGitHubBackend(token, repo string, httpClient *http.Client) (*GitHubBackend, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubBackend{client: client, owner: owner, repo: name}, nil
}

func splitRepo(repo string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: github repo must be in owner/repo format, got %q", ErrConfiguration, repo)
	}
	return parts[0], parts[1], nil
}

// ListOpenTickets reads live issue state rather than the search index,
// which lags behind newly created issues.
func (g *GitHubBackend) ListOpenTickets(ctx context.Context, limit int) ([]Ticket, error) {
	perPage := limit
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var tickets []Ticket
	for len(tickets) < limit {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			tickets = append(tickets, issueTicket(issue))
			if len(tickets) == limit {
				break
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return tickets, nil
}

func (g *GitHubBackend) ListLabels(ctx context.Context) ([]string, error) {
	opts := &github.ListOptions{PerPage: maxPerPage}
	var names []string
	for {
		labels, resp, err := g.client.Issues.ListLabels(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list labels: %w", err)
		}
		for _, l := range labels {
			names = append(names, l.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			return names, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHubBackend) CreateLabel(ctx context.Context, name, color string) error {
	_, _, err := g.client.Issues.CreateLabel(ctx, g.owner, g.repo, &github.Label{
		Name:  github.String(name),
		Color: github.String(color),
	})
	if err != nil {
		return fmt.Errorf("create label %s: %w", name, err)
	}
	return nil
}

func (g *GitHubBackend) CreateTicket(ctx context.Context, title, body string, labels []string) (Ticket, error) {
	if labels == nil {
		labels = []string{}
	}
	issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("create issue: %w", err)
	}
	return issueTicket(issue), nil
}

func issueTicket(issue *github.Issue) Ticket {
	return Ticket{
		ID:    strconv.Itoa(issue.GetNumber()),
		URL:   issue.GetHTMLURL(),
		Title: issue.GetTitle(),
		Body:  issue.GetBody(),
	}
}
