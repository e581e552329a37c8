package marketplace

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
)

const (
	selListingArticle = "article.js-worker.listing.worker-item"
	selName           = "div[itemprop=name]"
	selTitle          = "section.profile-role h1"
	selLocation       = "span.country-name"
	selHourlyRate     = "div.h3"
	selDescription    = "div#section-description"
	selGitHub         = `a[href*="github.com"]`
	selSkillRows      = "div#section-skills tr"
	selSkillName      = "td.skills"
	selDetailsLink    = "a.link.small"

	yearsColumn  = 3
	detailsLabel = "Ver mais detalhes"
)

// ParseListing returns the profile link of every freelancer card on a
// listing page, in page order. Relative links are resolved against base.
func ParseListing(doc *goquery.Document, base *url.URL) []string {
	var links []string

	doc.Find(selListingArticle).Each(func(_ int, article *goquery.Selection) {
		href, ok := article.Find("a[href]").First().Attr("href")
		if !ok || href == "" {
			return
		}

		links = append(links, resolve(base, href))
	})

	return links
}

// ParseProfile extracts a profile from its page. Fields missing from the
// page are set to [profile.NotAvailable].
func ParseProfile(doc *goquery.Document, profileURL string) profile.Profile {
	p := profile.Profile{
		URL:        profileURL,
		Name:       textOr(doc.Find(selName).First()),
		Title:      textOr(doc.Find(selTitle).First()),
		Location:   textOr(doc.Find(selLocation).First()),
		HourlyRate: textOr(doc.Find(selHourlyRate).First()),
		GitHub:     doc.Find(selGitHub).First().AttrOr("href", profile.NotAvailable),
	}

	p.Description = profile.NotAvailable
	if desc := doc.Find(selDescription).First(); desc.Length() > 0 {
		p.Description = strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.TrimSpace(desc.Text()))
	}

	doc.Find(selSkillRows).Each(func(_ int, row *goquery.Selection) {
		nameCell := row.Find(selSkillName).First()
		cells := row.Find("td")

		if nameCell.Length() == 0 || cells.Length() <= yearsColumn {
			return
		}

		p.Skills = append(p.Skills, profile.Skill{
			Name:  strings.TrimSpace(nameCell.Text()),
			Years: strings.TrimRightFunc(cells.Eq(yearsColumn).Text(), unicode.IsSpace),
		})
	})

	return p
}

// detailsLinks returns the URLs behind the "show more details" anchors.
func detailsLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string

	doc.Find(selDetailsLink).Each(func(_ int, a *goquery.Selection) {
		if !strings.Contains(a.Text(), detailsLabel) {
			return
		}

		href := a.AttrOr("data-url", a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		links = append(links, resolve(base, href))
	})

	return links
}

func textOr(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return profile.NotAvailable
	}

	return strings.TrimSpace(sel.Text())
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() || base == nil {
		return href
	}

	return base.ResolveReference(ref).String()
}
