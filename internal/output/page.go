// Package output holds the per-render page object: head items, body and the site accessors
// extensions read while a page is assembled.
package output

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"wikicards/app/internal/config"
	"wikicards/app/internal/title"
	"wikicards/app/internal/wiki"
)

// Page is the output of a single page render. It is not safe for concurrent use and
// must not outlive the request it was built for.
type Page struct {
	title      *title.Title
	site       config.Site
	body       string
	headKeys   []string
	headItems  map[string]string
	fileSearch []string
}

// New builds the output for a page. t may be nil for pages without a title (error views).
// File-search options are collected from the body's file images in order of first use.
func New(t *title.Title, site config.Site, body string) (*Page, error) {
	files, err := collectFiles(body)
	if err != nil {
		return nil, err
	}

	return &Page{
		title:      t,
		site:       site,
		body:       body,
		headItems:  make(map[string]string),
		fileSearch: files,
	}, nil
}

// Title returns the page title, nil when the output has none.
func (p *Page) Title() *title.Title {
	return p.title
}

// Site returns the site identity the page is rendered for.
func (p *Page) Site() config.Site {
	return p.site
}

// Server returns the server origin.
func (p *Page) Server() string {
	return p.site.Server
}

// ScriptPath returns the path index.php lives under, empty at the server root.
func (p *Page) ScriptPath() string {
	return p.site.ScriptPath
}

// Body returns the rendered page body.
func (p *Page) Body() string {
	return p.body
}

// FileSearchOptions lists the file keys the body displays.
func (p *Page) FileSearchOptions() []string {
	out := make([]string, len(p.fileSearch))
	copy(out, p.fileSearch)
	return out
}

// AddHeadItem stores markup for the page head under key. Adding the same key again
// replaces the markup but keeps its original position.
func (p *Page) AddHeadItem(key, markup string) {
	if _, exists := p.headItems[key]; !exists {
		p.headKeys = append(p.headKeys, key)
	}
	p.headItems[key] = markup
}

// HeadItem returns the markup stored under key.
func (p *Page) HeadItem(key string) (string, bool) {
	markup, ok := p.headItems[key]
	return markup, ok
}

// HeadItems returns all head markup in insertion order.
func (p *Page) HeadItems() []string {
	items := make([]string, 0, len(p.headKeys))
	for _, key := range p.headKeys {
		items = append(items, p.headItems[key])
	}
	return items
}

func collectFiles(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parsing page body")
	}

	var files []string
	seen := make(map[string]struct{})

	goquery.NewDocumentFromNode(root).Find("img[" + wiki.FileAttribute + "]").Each(func(_ int, sel *goquery.Selection) {
		key := strings.TrimSpace(sel.AttrOr(wiki.FileAttribute, ""))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		files = append(files, key)
	})

	return files, nil
}
