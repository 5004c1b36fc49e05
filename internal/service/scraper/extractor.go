package scraper

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
)

// Fetcher performs one fetch per call.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) domain.FetchOutcome
}

// Extractor is the source-family specific part of a scrape: finding team pages
// and turning one page into a TeamRecord. Extract must not perform I/O.
type Extractor interface {
	Discover(ctx context.Context, fetcher Fetcher, src domain.SourceDescriptor) ([]string, error)
	Extract(content []byte, locator string, src domain.SourceDescriptor) (*domain.TeamRecord, error)
}

// DefaultExtractors maps every supported division to its extractor.
func DefaultExtractors() map[domain.Division]Extractor {
	ncaa := NCAAExtractor{}
	return map[domain.Division]Extractor{
		domain.DivisionPrimary:       ncaa,
		domain.DivisionSecondary:     ncaa,
		domain.DivisionInternational: USportsExtractor{},
	}
}

func parseDocument(content []byte, locator string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.NewExtractError("HTML parse failed", locator, err)
	}
	return doc, nil
}

func text(sel *goquery.Selection) string {
	return util.CollapseSpace(sel.Text())
}

// fetchDocument fetches and parses one page through the scraper's fetcher.
func fetchDocument(ctx context.Context, fetcher Fetcher, locator string) (*goquery.Document, error) {
	content, err := fetcher.Fetch(ctx, locator).Result()
	if err != nil {
		return nil, err
	}
	return parseDocument(content, locator)
}

// rosterLinks collects absolute links on doc accepted by match, in document
// order, without duplicates.
func rosterLinks(doc *goquery.Document, base string, match func(href string) bool) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !match(strings.ToLower(href)) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		locator := abs.String()
		if _, dup := seen[locator]; dup {
			return
		}
		seen[locator] = struct{}{}
		links = append(links, locator)
	})
	return links
}

// schoolNameFromDocument prefers the site name and falls back to the page title.
func schoolNameFromDocument(doc *goquery.Document) string {
	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = util.CollapseSpace(name); name != "" {
			return name
		}
	}
	title := text(doc.Find("title").First())
	for _, sep := range []string{" | ", " - "} {
		if idx := strings.LastIndex(title, sep); idx >= 0 {
			if tail := strings.TrimSpace(title[idx+len(sep):]); tail != "" {
				return tail
			}
		}
	}
	return title
}
