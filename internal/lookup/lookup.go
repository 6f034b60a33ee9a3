// Package lookup implements the two external-collaborator lookups
// spec.md §4.7's ask primitives suspend on: geocoding a free-text
// location into coordinates for lookupLocation, and rendering a web
// page's main content into markdown for an RDL's preview description.
//
// The scraping shape (find a main-content element, strip navigation and
// script/style noise, then hand the remainder to a markdown converter)
// is grounded on the pack's processor/web-ingester/converter.go, adapted
// from golang.org/x/net/html manual tree-walking to goquery's CSS
// selector API — the reference architecture declares goquery as a direct
// dependency but never exercises it, so this is where it earns its keep.
// Both outbound requests attach a caller-supplied User-Agent through
// golang.org/x/net/http/httpguts, which is the package the standard
// library itself uses internally to validate header field values before
// writing them to the wire.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/http/httpguts"

	"github.com/cascade-run/cascade/internal/agenterr"
)

// Location is a resolved point of interest, per spec.md's ValueCategory
// Location answers.
type Location struct {
	DisplayName string
	Latitude    float64
	Longitude   float64
}

// Geocoder resolves free-text locations. An external collaborator per
// spec.md §1(iii); this package only defines the narrow client shape.
type Geocoder struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewGeocoder creates a Geocoder client against baseURL (a Nominatim-
// compatible search endpoint). userAgent identifies the deployment to the
// geocoding service, as Nominatim's usage policy requires.
func NewGeocoder(baseURL, userAgent string) *Geocoder {
	return &Geocoder{baseURL: baseURL, userAgent: userAgent, http: &http.Client{Timeout: 5 * time.Second}}
}

// Resolve looks up query and returns the best-ranked match.
func (g *Geocoder) Resolve(ctx context.Context, query string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?format=json&q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "build geocoder request", agenterr.CategorySystem)
	}
	if err := setValidatedHeader(req.Header, "User-Agent", g.userAgent); err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "invalid geocoder user agent", agenterr.CategorySystem)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, err.Error()).Temporary().Build()
	}
	defer resp.Body.Close()

	var results []struct {
		DisplayName string `json:"display_name"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "decode geocoder response", agenterr.CategorySystem)
	}
	if len(results) == 0 {
		return nil, agenterr.NewBuilder(agenterr.CodeParseFailed, "no location matched "+query).
			Category(agenterr.CategoryParse).Build()
	}

	best := results[0]
	loc := &Location{DisplayName: best.DisplayName}
	loc.Latitude, loc.Longitude = parseCoord(best.Lat), parseCoord(best.Lon)
	return loc, nil
}

// parseCoord parses a decimal coordinate string. A malformed value
// degrades to 0 rather than failing the whole lookup.
func parseCoord(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// setValidatedHeader rejects header values that would smuggle a CRLF or
// otherwise malformed byte into the wire, before net/http gets a chance to
// silently strip or reject them deeper in the stack. value is empty for an
// unconfigured user agent, which is fine; no-op.
func setValidatedHeader(h http.Header, key, value string) error {
	if value == "" {
		return nil
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid value for header %q", key)
	}
	h.Set(key, value)
	return nil
}

var mainContentSelectors = []string{"main", "article", "[role=main]"}

var noiseSelectors = []string{
	"nav", "header", "footer", "aside", "script", "style", "noscript",
	"iframe", "object", "embed", "form", "input", "button",
	".nav", ".navbar", ".navigation", ".sidebar", ".menu", ".toc",
	".advertisement", ".social", ".share", ".comments",
}

// RenderPreview fetches a URL and reduces its main content to markdown,
// for an RDL's Description field. userAgent is validated and attached the
// same way Resolve attaches one, since both requests leave the process
// carrying a caller-supplied string into a header.
func RenderPreview(ctx context.Context, client *http.Client, url, userAgent string) (title, markdown string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", agenterr.Wrap(err, agenterr.CodeUnexpected, "build preview request", agenterr.CategorySystem)
	}
	if err := setValidatedHeader(req.Header, "User-Agent", userAgent); err != nil {
		return "", "", agenterr.Wrap(err, agenterr.CodeUnexpected, "invalid preview user agent", agenterr.CategorySystem)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", agenterr.NewBuilder(agenterr.CodeServiceUnreachable, err.Error()).Temporary().Build()
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", agenterr.Wrap(err, agenterr.CodeParseFailed, "parse HTML", agenterr.CategoryParse)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	content := findMainContent(doc)
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	rendered, err := converter.ConvertString(content)
	if err != nil {
		return "", "", agenterr.Wrap(err, agenterr.CodeUnexpected, "convert to markdown", agenterr.CategorySystem)
	}
	return title, cleanMarkdown(rendered), nil
}

func findMainContent(doc *goquery.Document) string {
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			html, err := sel.Html()
			if err == nil {
				return html
			}
		}
	}

	body := doc.Find("body")
	for _, selector := range noiseSelectors {
		body.Find(selector).Remove()
	}
	html, err := body.Html()
	if err != nil {
		return ""
	}
	return html
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			blank++
			if blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
