package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, data WikiPageData) string {
	t.Helper()

	var buf bytes.Buffer
	if err := WikiPage(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	return buf.String()
}

func TestWikiPageWritesHeadItemsRaw(t *testing.T) {
	t.Parallel()

	html := render(t, WikiPageData{
		Layout: LayoutData{
			SiteName:  "Dogopedia",
			Title:     "Dogs",
			HeadItems: []string{`<script type="application/ld+json">{}</script>`},
		},
		Heading: "Dogs",
		HTML:    "<p>Woof</p>",
	})

	if !strings.Contains(html, `<head><meta charset="utf-8">`) {
		t.Fatalf("expected head element, got %q", html)
	}
	head := html[:strings.Index(html, "</head>")]
	if !strings.Contains(head, `<script type="application/ld+json">{}</script>`) {
		t.Fatalf("expected head item inside head, got %q", head)
	}
	if !strings.Contains(html, "<title>Dogs - Dogopedia</title>") {
		t.Fatalf("expected page title, got %q", html)
	}
	if !strings.Contains(html, "<p>Woof</p>") {
		t.Fatalf("expected page body, got %q", html)
	}
}

func TestWikiPageEscapesHeading(t *testing.T) {
	t.Parallel()

	html := render(t, WikiPageData{
		Layout:  LayoutData{SiteName: "Wiki"},
		Heading: "Cats & <dogs>",
	})

	if !strings.Contains(html, "<h1>Cats &amp; &lt;dogs&gt;</h1>") {
		t.Fatalf("expected escaped heading, got %q", html)
	}
}

func TestSearchPageWithoutResults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := SearchPage(SearchPageData{Layout: LayoutData{SiteName: "Wiki"}, Query: "ferrets"}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if !strings.Contains(buf.String(), "No pages match <strong>ferrets</strong>") {
		t.Fatalf("expected empty results message, got %q", buf.String())
	}
}
