// Package github is a small GitHub REST client covering the account,
// repository, language and contributor lookups the fetcher needs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

// Sentinel errors.
var (
	ErrNotFound         = errors.New("github: not found")
	ErrRateLimited      = errors.New("github: rate limit exceeded")
	ErrUnexpectedStatus = errors.New("github: unexpected status")
)

const (
	apiVersion       = "2022-11-28"
	mediaType        = "application/vnd.github+json"
	perPage          = 100
	defaultCacheSize = 1024
)

var lastPagePattern = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// Repository is the subset of the repository payload the fetcher reads.
type Repository struct {
	Name     string    `json:"name"`
	FullName string    `json:"full_name"`
	CloneURL string    `json:"clone_url"`
	HTMLURL  string    `json:"html_url"`
	Language string    `json:"language"`
	PushedAt time.Time `json:"pushed_at"`
	Owner    Owner     `json:"owner"`
	Size     int64     `json:"size"` // kilobytes
	Fork     bool      `json:"fork"`
}

// Owner is the account owning a repository.
type Owner struct {
	Login string `json:"login"`
}

// User is the subset of the account payload the fetcher reads.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
}

// Options configures a [Client].
type Options struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	LanguageCacheSize int

	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger
}

// Client talks to the GitHub REST API.
type Client struct {
	http      *resty.Client
	languages *lru.Cache[string, map[string]int64]
}

// New creates a client. An empty token sends unauthenticated requests.
func New(opts Options) (*Client, error) {
	size := opts.LanguageCacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	cache, err := lru.New[string, map[string]int64](size)
	if err != nil {
		return nil, fmt.Errorf("create language cache: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	httpClient.SetHeader("Accept", mediaType)
	httpClient.SetHeader("X-GitHub-Api-Version", apiVersion)

	if opts.Token != "" {
		httpClient.SetAuthToken(opts.Token)
	}

	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	observability.InstrumentResty(httpClient, opts.Tracer, opts.Metrics, opts.Logger)

	return &Client{http: httpClient, languages: cache}, nil
}

// User fetches an account by login.
func (c *Client) User(ctx context.Context, login string) (User, error) {
	var user User

	_, err := c.get(ctx, "/users/"+url.PathEscape(login), nil, &user)
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", login, err)
	}

	return user, nil
}

// Repositories lists every repository owned by login, following pagination.
func (c *Client) Repositories(ctx context.Context, login string) ([]Repository, error) {
	var all []Repository

	for page := 1; ; page++ {
		var batch []Repository

		params := map[string]string{
			"type":     "owner",
			"per_page": strconv.Itoa(perPage),
			"page":     strconv.Itoa(page),
		}

		_, err := c.get(ctx, "/users/"+url.PathEscape(login)+"/repos", params, &batch)
		if err != nil {
			return nil, fmt.Errorf("list repositories of %s: %w", login, err)
		}

		all = append(all, batch...)

		if len(batch) < perPage {
			return all, nil
		}
	}
}

// Languages returns the byte count per detected language of a repository.
// Results are cached per repository for the lifetime of the client.
func (c *Client) Languages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	key := owner + "/" + repo

	if cached, ok := c.languages.Get(key); ok {
		return cached, nil
	}

	langs := map[string]int64{}

	_, err := c.get(ctx, repoPath(owner, repo)+"/languages", nil, &langs)
	if err != nil {
		return nil, fmt.Errorf("get languages of %s: %w", key, err)
	}

	c.languages.Add(key, langs)

	return langs, nil
}

// ContributorCount returns how many contributors a repository has. It asks
// for one contributor per page and reads the last page number from the Link
// header, so the cost is one request regardless of the count.
func (c *Client) ContributorCount(ctx context.Context, owner, repo string) (int, error) {
	var page []struct {
		Login string `json:"login"`
	}

	res, err := c.get(ctx, repoPath(owner, repo)+"/contributors", map[string]string{"per_page": "1"}, &page)
	if err != nil {
		return 0, fmt.Errorf("get contributors of %s/%s: %w", owner, repo, err)
	}

	if res.StatusCode() == http.StatusNoContent {
		return 0, nil
	}

	if last, ok := lastPage(res.Header().Get("Link")); ok {
		return last, nil
	}

	return len(page), nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(result)

	if params != nil {
		req.SetQueryParams(params)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, err
	}

	return res, checkStatus(res)
}

func checkStatus(res *resty.Response) error {
	switch code := res.StatusCode(); {
	case code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case (code == http.StatusForbidden || code == http.StatusTooManyRequests) &&
		res.Header().Get("X-RateLimit-Remaining") == "0":
		return fmt.Errorf("%w (resets at %s)", ErrRateLimited, res.Header().Get("X-RateLimit-Reset"))
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
	}
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

func lastPage(link string) (int, bool) {
	m := lastPagePattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	return n, true
}
