package marketplace_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/marketplace"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
)

const listingHTML = `<html><body>
<article class="js-worker listing worker-item"><h2><a href="/freelancer/mona">Mona</a></h2></article>
<article class="js-worker listing worker-item"><a href="https://www.example.org/freelancer/hubot">Hubot</a></article>
<article class="listing"><a href="/freelancer/ignored">Not a worker card</a></article>
</body></html>`

const profileHTML = `<html><body>
<div itemprop="name">  Mona Lisa </div>
<section class="profile-role"><h1>Backend developer</h1></section>
<span class="country-name">Brazil</span>
<div class="h3">USD 30.00</div>
<div class="h3">second rate</div>
<div id="section-description">
  Line one
  Line two
</div>
<a href="https://twitter.com/mona">twitter</a>
<a href="https://github.com/mona/">github</a>
<div id="section-skills"><table>
<tr><td class="skills">Python</td><td></td><td></td><td>5 years  </td></tr>
<tr><td class="skills">PHP</td><td>only two cells</td></tr>
<tr><td>no skill cell</td><td></td><td></td><td>1 year</td></tr>
</table></div>
<a class="link small" href="/freelancer/mona/details">Ver mais detalhes</a>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	return doc
}

func TestParseListing(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://www.example.org")
	require.NoError(t, err)

	links := marketplace.ParseListing(mustDoc(t, listingHTML), base)

	assert.Equal(t, []string{
		"https://www.example.org/freelancer/mona",
		"https://www.example.org/freelancer/hubot",
	}, links)
}

func TestParseProfile(t *testing.T) {
	t.Parallel()

	p := marketplace.ParseProfile(mustDoc(t, profileHTML), "https://www.example.org/freelancer/mona")

	assert.Equal(t, "Mona Lisa", p.Name)
	assert.Equal(t, "Backend developer", p.Title)
	assert.Equal(t, "Brazil", p.Location)
	assert.Equal(t, "USD 30.00", p.HourlyRate)
	assert.Equal(t, "https://github.com/mona/", p.GitHub)
	assert.NotContains(t, p.Description, "\n")
	assert.True(t, strings.HasPrefix(p.Description, "Line one"))
	assert.Equal(t, []profile.Skill{{Name: "Python", Years: "5 years"}}, p.Skills)
}

func TestParseProfile_MissingFieldsAreNA(t *testing.T) {
	t.Parallel()

	p := marketplace.ParseProfile(mustDoc(t, "<html><body><p>empty</p></body></html>"), "u")

	assert.Equal(t, profile.NotAvailable, p.Name)
	assert.Equal(t, profile.NotAvailable, p.Title)
	assert.Equal(t, profile.NotAvailable, p.Location)
	assert.Equal(t, profile.NotAvailable, p.HourlyRate)
	assert.Equal(t, profile.NotAvailable, p.Description)
	assert.Equal(t, profile.NotAvailable, p.GitHub)
	assert.Empty(t, p.Skills)
}

func newTestClient(t *testing.T, srv *httptest.Server) *marketplace.Client {
	t.Helper()

	client, err := marketplace.New(marketplace.Options{
		BaseURL:      srv.URL,
		UserAgent:    "freelaudit-test",
		Timeout:      5 * time.Second,
		DetailsDelay: time.Hour,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)

	return client
}

func TestClient_ListingURLs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv)

	assert.Equal(t, srv.URL+"/freelancers?language=pt&page=2&query=github.com&worker_type=0",
		client.LanguageListingURL("pt", 2))
	assert.Equal(t, srv.URL+"/es/freelancers/python?page=1&query=github.com&worker_type=0",
		client.TechnologyListingURL("es", "python", 1))
}

func TestClient_ProfileExpandsDetails(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/freelancer/mona", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Replace(profileHTML, `<div id="section-skills">`, `<div id="old">`, 1)))
	})
	mux.HandleFunc("/freelancer/mona/details", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<div id="section-skills"><table>` +
			`<tr><td class="skills">Go</td><td></td><td></td><td>2 years</td></tr></table></div>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := newTestClient(t, srv).Profile(context.Background(), srv.URL+"/freelancer/mona")
	require.NoError(t, err)

	assert.Equal(t, []profile.Skill{{Name: "Go", Years: "2 years"}}, p.Skills)
}

func TestClient_ProfileDetailsFailureIsSkipped(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/freelancer/mona", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(profileHTML))
	})
	mux.HandleFunc("/freelancer/mona/details", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := newTestClient(t, srv).Profile(context.Background(), srv.URL+"/freelancer/mona")
	require.NoError(t, err)

	assert.Equal(t, "Mona Lisa", p.Name)
	assert.Len(t, p.Skills, 1)
}

func TestClient_ListingErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv)

	_, err := client.ListingLinks(context.Background(), client.LanguageListingURL("en", 1))
	require.ErrorIs(t, err, marketplace.ErrUnexpectedStatus)
}
