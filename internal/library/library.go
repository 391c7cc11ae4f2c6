// Package library scrapes the library directory and library pages.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CSS selectors of the library site
const (
	directoryItemSelector = "li.css-77qsxv"
	nameSelector          = "h1.css-1xx2irx-StyledHeading"
	introSelector         = "p.css-733d4y-StyledText"
	addressSelector       = "address"
)

// ErrMissingField is returned when a page lacks an expected element
var ErrMissingField = errors.New("missing field")

// Entry is one library listed in the directory
type Entry struct {
	Name string
	URL  string
}

// Library holds what is known about one library
type Library struct {
	Name     string
	Intro    string
	Location string
}

// Info renders a one-line description of the library
func (l Library) Info() string {
	return fmt.Sprintf("%s locates at %s. %s", l.Name, l.Location, l.Intro)
}

// PageFetcher returns the body of a page
type PageFetcher interface {
	GetText(ctx context.Context, pageURL string) (string, error)
}

// Scraper reads libraries through a PageFetcher
type Scraper struct {
	fetcher       PageFetcher
	baseURL       string
	directoryPath string
	strip         []string
}

// NewScraper returns a scraper for the site at baseURL
func NewScraper(fetcher PageFetcher, baseURL, directoryPath string, strip []string) *Scraper {
	return &Scraper{
		fetcher:       fetcher,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		directoryPath: directoryPath,
		strip:         strip,
	}
}

// Directory lists the libraries in page order
func (s *Scraper) Directory(ctx context.Context) ([]Entry, error) {
	body, err := s.fetcher.GetText(ctx, s.baseURL+s.directoryPath)
	if err != nil {
		return nil, err
	}
	return ParseDirectory(body, s.baseURL)
}

// Library fetches and parses the page of one directory entry
func (s *Scraper) Library(ctx context.Context, entry Entry) (Library, error) {
	body, err := s.fetcher.GetText(ctx, entry.URL)
	if err != nil {
		return Library{}, err
	}
	return ParseLibrary(body, s.strip)
}

// ParseDirectory extracts the directory entries. Names are lower-cased and
// links are made absolute against baseURL. A name listed twice keeps its
// first position and its last link.
func ParseDirectory(html, baseURL string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory page: %w", err)
	}

	var entries []Entry
	index := map[string]int{}
	doc.Find(directoryItemSelector).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a").First().Attr("href")
		if !ok {
			return
		}
		name := strings.ToLower(strings.TrimSpace(item.Find("span").First().Text()))
		if name == "" {
			return
		}
		link := href
		if strings.HasPrefix(href, "/") {
			link = baseURL + href
		}
		if i, seen := index[name]; seen {
			entries[i].URL = link
			return
		}
		index[name] = len(entries)
		entries = append(entries, Entry{Name: name, URL: link})
	})
	return entries, nil
}

// ParseLibrary extracts a library from its page. Each fragment in strip is
// removed from the address.
func ParseLibrary(html string, strip []string) (Library, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Library{}, fmt.Errorf("failed to parse library page: %w", err)
	}

	name := doc.Find(nameSelector).First()
	if name.Length() == 0 {
		return Library{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	intro := doc.Find(introSelector).First()
	if intro.Length() == 0 {
		return Library{}, fmt.Errorf("%w: intro", ErrMissingField)
	}
	address := doc.Find(addressSelector).First()
	if address.Length() == 0 {
		return Library{}, fmt.Errorf("%w: address", ErrMissingField)
	}

	location, err := extractAddress(address.Text())
	if err != nil {
		return Library{}, err
	}

	return Library{
		Name:     strings.TrimSpace(name.Text()),
		Intro:    strings.TrimSpace(intro.Text()),
		Location: cleanAddress(location, strip),
	}, nil
}

// extractAddress keeps the text between the "Address" label and the "View"
// link of the address block
func extractAddress(text string) (string, error) {
	_, after, ok := strings.Cut(text, "Address")
	if !ok {
		return "", fmt.Errorf("%w: address label", ErrMissingField)
	}
	before, _, _ := strings.Cut(after, "View")
	return before, nil
}

func cleanAddress(address string, strip []string) string {
	for _, fragment := range strip {
		if fragment == "" {
			continue
		}
		address = strings.ReplaceAll(address, fragment, " ")
	}

	// drop the empty segments a removed fragment leaves between commas
	var parts []string
	for _, part := range strings.Split(address, ",") {
		if part = strings.Join(strings.Fields(part), " "); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
