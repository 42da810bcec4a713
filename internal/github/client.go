// Package github is a minimal client for the GitHub repository content API:
// recursive trees, raw file content and READMEs.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"machgate/internal/logging"
)

// ErrInvalidRepo is returned when a repository reference cannot be parsed.
var ErrInvalidRepo = errors.New("invalid repository reference")

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// Repo identifies a repository.
type Repo struct {
	Owner string
	Name  string
}

// String returns "owner/name", the form used as the chunk repo tag.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

var repoPartRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepo extracts owner/name from a GitHub URL or shorthand. Accepted:
// https://github.com/o/r[.git][/tree/...], github.com/o/r, git@github.com:o/r.git, o/r.
func ParseRepo(ref string) (Repo, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return Repo{}, fmt.Errorf("%w: empty", ErrInvalidRepo)
	}

	switch {
	case strings.HasPrefix(s, "git@"):
		_, after, ok := strings.Cut(s, ":")
		if !ok {
			return Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepo, ref)
		}
		s = after
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil {
			return Repo{}, fmt.Errorf("%w: %q: %v", ErrInvalidRepo, ref, err)
		}
		s = u.Path
	default:
		s = strings.TrimPrefix(s, "www.")
		s = strings.TrimPrefix(s, "github.com/")
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 {
		return Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepo, ref)
	}
	r := Repo{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}
	if !repoPartRe.MatchString(r.Owner) || !repoPartRe.MatchString(r.Name) {
		return Repo{}, fmt.Errorf("%w: %q", ErrInvalidRepo, ref)
	}
	return r, nil
}

// TreeEntry is one node of a recursive git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob, tree, commit
	Size int    `json:"size"`
}

// Client calls the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sends a bearer token, raising rate limits and allowing private repos.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a client for https://api.github.com unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: "https://api.github.com",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTree lists every entry of the default branch, recursively.
func (c *Client) GetTree(ctx context.Context, repo Repo) ([]TreeEntry, error) {
	var out struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/HEAD?recursive=1", repo.Owner, repo.Name)
	body, err := c.get(ctx, path, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", repo, err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", repo, err)
	}
	if out.Truncated {
		logging.Get(logging.CategoryGitHub).Warn("Tree for %s truncated at %d entries", repo, len(out.Tree))
	}
	logging.GitHubDebug("Tree for %s: %d entries", repo, len(out.Tree))
	return out.Tree, nil
}

// GetFileContent returns the raw bytes of one file on the default branch.
func (c *Client) GetFileContent(ctx context.Context, repo Repo, filePath string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", repo.Owner, repo.Name, escapePath(filePath))
	body, err := c.get(ctx, path, "application/vnd.github.raw+json")
	if err != nil {
		return nil, fmt.Errorf("get %s in %s: %w", filePath, repo, err)
	}
	return body, nil
}

// GetReadme returns the raw bytes of the repository README.
func (c *Client) GetReadme(ctx context.Context, repo Repo) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/readme", repo.Owner, repo.Name)
	body, err := c.get(ctx, path, "application/vnd.github.raw+json")
	if err != nil {
		return nil, fmt.Errorf("get readme %s: %w", repo, err)
	}
	return body, nil
}

// maxBody bounds every response read.
const maxBody = 16 << 20

func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "machgate")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	logging.GitHubDebug("GET %s -> %d (%d bytes, %v)", path, resp.StatusCode, len(body), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("github returned status %d: %s", resp.StatusCode, msg)
	}
	return body, nil
}

// escapePath escapes each segment of a repository path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
