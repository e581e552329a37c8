// Package marketplace scrapes freelancer listing and profile pages.
package marketplace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
	"github.com/Sumatoshi-tech/freelaudit/pkg/retry"
)

// ErrUnexpectedStatus is returned when a page answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

const listingQuery = "github.com"

// Options configures a [Client].
type Options struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	DetailsDelay time.Duration

	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger

	// Sleep replaces the politeness pause, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client fetches and parses marketplace pages.
type Client struct {
	http         *resty.Client
	base         *url.URL
	logger       *slog.Logger
	detailsDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// New builds a client with a cookie jar and the Cloudflare bypass transport.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", opts.UserAgent)

	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	observability.InstrumentResty(httpClient, opts.Tracer, opts.Metrics, logger)

	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	return &Client{
		http:         httpClient,
		base:         base,
		logger:       logger,
		detailsDelay: opts.DetailsDelay,
		sleep:        sleep,
	}, nil
}

// LanguageListingURL is the listing page filtered by interface language.
func (c *Client) LanguageListingURL(lang string, page int) string {
	q := url.Values{}
	q.Set("language", lang)
	q.Set("query", listingQuery)
	q.Set("worker_type", "0")
	q.Set("page", strconv.Itoa(page))

	return c.base.JoinPath("freelancers").String() + "?" + q.Encode()
}

// TechnologyListingURL is the listing page filtered by technology tag.
func (c *Client) TechnologyListingURL(lang, tech string, page int) string {
	q := url.Values{}
	q.Set("query", listingQuery)
	q.Set("worker_type", "0")
	q.Set("page", strconv.Itoa(page))

	return c.base.JoinPath(lang, "freelancers", tech).String() + "?" + q.Encode()
}

// ListingLinks loads a listing page and returns its profile links.
func (c *Client) ListingLinks(ctx context.Context, pageURL string) ([]string, error) {
	doc, err := c.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return ParseListing(doc, c.base), nil
}

// Profile loads a profile page, expands its details section when possible
// and extracts the profile fields.
func (c *Client) Profile(ctx context.Context, profileURL string) (profile.Profile, error) {
	doc, err := c.document(ctx, profileURL)
	if err != nil {
		return profile.Profile{}, err
	}

	c.expandDetails(ctx, doc)

	return ParseProfile(doc, profileURL), nil
}

// expandDetails appends the content behind every "show more details" link
// to doc. Failures are logged and skipped.
func (c *Client) expandDetails(ctx context.Context, doc *goquery.Document) {
	for _, link := range detailsLinks(doc, c.base) {
		res, err := c.http.R().SetContext(ctx).Get(link)
		if err == nil && res.IsError() {
			err = fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
		}

		if err != nil {
			c.logger.WarnContext(ctx, "could not expand profile details", "url", link, "error", err)

			continue
		}

		doc.Find("body").AppendHtml(res.String())

		sleepErr := c.sleep(ctx, c.detailsDelay)
		if sleepErr != nil {
			c.logger.WarnContext(ctx, "details pause interrupted", "error", sleepErr)

			return
		}
	}
}

func (c *Client) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", pageURL, err)
	}

	if res.IsError() {
		return nil, fmt.Errorf("get %s: %w: %s", pageURL, ErrUnexpectedStatus, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return doc, nil
}
