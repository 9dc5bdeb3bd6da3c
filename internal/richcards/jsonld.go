package richcards

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

const schemaContext = "http://schema.org"

// Article is the schema.org Article document. Field order is the serialised key order.
type Article struct {
	Context          string       `json:"@context"`
	Type             string       `json:"@type"`
	MainEntityOfPage WebPage      `json:"mainEntityOfPage"`
	Author           Person       `json:"author"`
	Headline         string       `json:"headline"`
	DateCreated      Timestamp    `json:"dateCreated"`
	DatePublished    Timestamp    `json:"datePublished"`
	DateModified     Timestamp    `json:"dateModified"`
	DiscussionURL    string       `json:"discussionUrl"`
	Image            ImageObject  `json:"image"`
	Publisher        Organization `json:"publisher"`
	Description      string       `json:"description"`
}

// WebPage identifies the page an Article is the main entity of.
type WebPage struct {
	Type string `json:"@type"`
	ID   string `json:"@id"`
}

// Person names an author.
type Person struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

// ImageObject is an image with its pixel size.
type ImageObject struct {
	Type   string `json:"@type"`
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Logo is an ImageObject without dimensions, as used for publisher logos.
type Logo struct {
	Type string `json:"@type"`
	URL  string `json:"url"`
}

// Organization is the publisher of an Article.
type Organization struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	Logo Logo   `json:"logo"`
}

// WebSite is the schema.org WebSite document with its site search action.
type WebSite struct {
	Context         string       `json:"@context"`
	Type            string       `json:"@type"`
	URL             string       `json:"url"`
	PotentialAction SearchAction `json:"potentialAction"`
}

// SearchAction describes how to query the site search.
type SearchAction struct {
	Type       string `json:"@type"`
	Target     string `json:"target"`
	QueryInput string `json:"query-input"`
}

// ScriptTag serialises doc and wraps it in a JSON-LD script element. encoding/json escapes
// <, > and & inside strings, so the payload cannot close the element early.
func ScriptTag(doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "encoding json-ld document")
	}

	var b strings.Builder
	b.Grow(len(payload) + 64)
	b.WriteString(`<script type="application/ld+json">`)
	b.Write(payload)
	b.WriteString(`</script>`)
	return b.String(), nil
}
