// Package sonar talks to a SonarQube server: project registration, issue
// and measure retrieval, and running the sonar-scanner executable.
package sonar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

// Sentinel errors.
var (
	ErrUnexpectedStatus = errors.New("sonar: unexpected status")
	// ErrNoMeasures means the server has no file measures for a project yet.
	ErrNoMeasures = errors.New("sonar: no file measures")
)

const (
	defaultPageSize = 500
	// The search endpoints refuse to page past this many results.
	resultWindow = 10000
	metricNCLOC  = "ncloc"
)

// Options configures a [Client].
type Options struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	PageSize int

	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger
}

// Client is a SonarQube web API client.
type Client struct {
	http     *resty.Client
	pageSize int
}

// New creates a client. The token is sent as the basic-auth user name.
func New(opts Options) *Client {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)

	if opts.Token != "" {
		httpClient.SetBasicAuth(opts.Token, "")
	}

	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	observability.InstrumentResty(httpClient, opts.Tracer, opts.Metrics, opts.Logger)

	return &Client{http: httpClient, pageSize: pageSize}
}

// ProjectExists reports whether a project with key is registered.
func (c *Client) ProjectExists(ctx context.Context, key string) (bool, error) {
	var page projectsPage

	err := c.get(ctx, "/api/projects/search", map[string]string{"projects": key}, &page)
	if err != nil {
		return false, fmt.Errorf("search project %s: %w", key, err)
	}

	return len(page.Components) > 0, nil
}

// CreateProject registers a project.
func (c *Client) CreateProject(ctx context.Context, key, name string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"name": name, "project": key}).
		Post("/api/projects/create")
	if err != nil {
		return fmt.Errorf("create project %s: %w", key, err)
	}

	err = checkStatus(res)
	if err != nil {
		return fmt.Errorf("create project %s: %w: %s", key, err, res.String())
	}

	return nil
}

// EnsureProject registers a project unless it already exists and reports
// whether it existed. Two concurrent callers may both try to create it.
func (c *Client) EnsureProject(ctx context.Context, key, name string) (bool, error) {
	exists, err := c.ProjectExists(ctx, key)
	if err != nil {
		return false, err
	}

	if exists {
		return true, nil
	}

	return false, c.CreateProject(ctx, key, name)
}

// Issues returns every issue of a project, up to the server's search window.
func (c *Client) Issues(ctx context.Context, key string) ([]Issue, error) {
	var all []Issue

	for p := 1; ; p++ {
		var page issuesPage

		err := c.get(ctx, "/api/issues/search", map[string]string{
			"componentKeys": key,
			"ps":            strconv.Itoa(c.pageSize),
			"p":             strconv.Itoa(p),
		}, &page)
		if err != nil {
			return nil, fmt.Errorf("search issues of %s: %w", key, err)
		}

		all = append(all, page.Issues...)

		total := page.Paging.Total
		if total == 0 {
			total = page.Total
		}

		if len(page.Issues) == 0 || len(all) >= total || p*c.pageSize >= resultWindow {
			return all, nil
		}
	}
}

// FileMeasures returns the ncloc component tree of a project. An empty tree
// is reported as [ErrNoMeasures].
func (c *Client) FileMeasures(ctx context.Context, key string) ([]Component, error) {
	var all []Component

	for p := 1; ; p++ {
		var page componentTreePage

		err := c.get(ctx, "/api/measures/component_tree", map[string]string{
			"component":  key,
			"metricKeys": metricNCLOC,
			"ps":         strconv.Itoa(c.pageSize),
			"p":          strconv.Itoa(p),
		}, &page)
		if err != nil {
			return nil, fmt.Errorf("get measures of %s: %w", key, err)
		}

		all = append(all, page.Components...)

		if len(page.Components) == 0 || len(all) >= page.Paging.Total || p*c.pageSize >= resultWindow {
			break
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrNoMeasures)
	}

	return all, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(result).
		Get(path)
	if err != nil {
		return err
	}

	return checkStatus(res)
}

func checkStatus(res *resty.Response) error {
	if res.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
}
