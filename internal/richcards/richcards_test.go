package richcards

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"

	"wikicards/app/internal/config"
	applog "wikicards/app/internal/log"
	"wikicards/app/internal/output"
	"wikicards/app/internal/title"
	"wikicards/app/internal/wiki"
)

type stubPages struct {
	first      *wiki.Revision
	firstErr   error
	touched    string
	touchedErr error
}

func (s stubPages) FirstRevision(context.Context, title.Title) (*wiki.Revision, error) {
	return s.first, s.firstErr
}

func (s stubPages) Touched(context.Context, title.Title) (string, error) {
	return s.touched, s.touchedErr
}

type stubFiles map[string]*wiki.File

func (s stubFiles) FindFile(_ context.Context, name string) (*wiki.File, error) {
	if file, ok := s[name]; ok {
		return file, nil
	}
	if name == "Broken.jpg" {
		return nil, eris.New("file store unavailable")
	}
	return nil, nil
}

func testSite() config.Site {
	return config.Site{
		Name:        "Dogopedia",
		Server:      "https://wiki.example.org",
		Logo:        "/static/logo.svg",
		ArticlePath: "/wiki/$1",
	}
}

func newExtension(t *testing.T, site config.Site, pages PageLookup, files wiki.FileFinder) *Extension {
	t.Helper()

	ext, err := New(Options{
		Site:   site,
		Pages:  pages,
		Files:  files,
		Logger: applog.Discard(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return ext
}

func newOutput(t *testing.T, rawTitle string, site config.Site, body string) *output.Page {
	t.Helper()

	var tp *title.Title
	if rawTitle != "" {
		parsed := title.MustParse(rawTitle)
		tp = &parsed
	}

	page, err := output.New(tp, site, body)
	if err != nil {
		t.Fatalf("output.New returned error: %v", err)
	}
	return page
}

func scriptBody(t *testing.T, markup string) string {
	t.Helper()

	const open = `<script type="application/ld+json">`
	const closing = `</script>`
	if !strings.HasPrefix(markup, open) || !strings.HasSuffix(markup, closing) {
		t.Fatalf("expected json-ld script element, got %q", markup)
	}
	return strings.TrimSuffix(strings.TrimPrefix(markup, open), closing)
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Site: testSite(), Files: stubFiles{}}); err == nil {
		t.Fatalf("expected error without page lookup")
	}
	if _, err := New(Options{Site: testSite(), Pages: stubPages{}}); err == nil {
		t.Fatalf("expected error without file finder")
	}
	if _, err := New(Options{Pages: stubPages{}, Files: stubFiles{}}); err == nil {
		t.Fatalf("expected error without site server")
	}
}

func TestArticleDocument(t *testing.T) {
	t.Parallel()

	pages := stubPages{
		first:   &wiki.Revision{Timestamp: "20200101120000", UserName: "alice"},
		touched: "20210305081500",
	}
	ext := newExtension(t, testSite(), pages, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), "<p>Dogs are great.</p>")

	ext.Article().Render(context.Background(), out)

	markup, ok := out.HeadItem(ArticleHeadKey)
	if !ok {
		t.Fatalf("expected %s head item", ArticleHeadKey)
	}

	want := `{"@context":"http://schema.org","@type":"Article",` +
		`"mainEntityOfPage":{"@type":"WebPage","@id":"https://wiki.example.org/wiki/Dogs"},` +
		`"author":{"@type":"Person","name":"alice"},"headline":"Dogs",` +
		`"dateCreated":"2020-01-01T12:00:00+00:00","datePublished":"2020-01-01T12:00:00+00:00",` +
		`"dateModified":"2021-03-05T08:15:00+00:00","discussionUrl":"https://wiki.example.org/wiki/Talk:Dogs",` +
		`"image":{"@type":"ImageObject","url":"https://wiki.example.org/static/logo.svg","height":135,"width":135},` +
		`"publisher":{"@type":"Organization","name":"Dogopedia","logo":{"@type":"ImageObject","url":"https://wiki.example.org/static/logo.svg"}},` +
		`"description":"Dogs"}`
	if got := scriptBody(t, markup); got != want {
		t.Fatalf("unexpected article document\nwant: %s\ngot:  %s", want, got)
	}
}

func TestArticleUsesFirstDisplayedImage(t *testing.T) {
	t.Parallel()

	files := stubFiles{
		"Dog.jpg": {Name: "Dog.jpg", URL: "/images/dog.jpg", Width: 320, Height: 200},
		"Cat.png": {Name: "Cat.png", URL: "https://cdn.example.org/cat.png", Width: 10, Height: 10},
	}
	ext := newExtension(t, testSite(), stubPages{}, files)
	body := `<p><img src="/images/dog.jpg" data-file="Dog.jpg"><img src="x" data-file="Cat.png"></p>`
	out := newOutput(t, "Dogs", testSite(), body)

	ext.Article().Render(context.Background(), out)

	markup, _ := out.HeadItem(ArticleHeadKey)
	want := `"image":{"@type":"ImageObject","url":"https://wiki.example.org/images/dog.jpg","height":200,"width":320}`
	if !strings.Contains(markup, want) {
		t.Fatalf("expected image %s in %s", want, markup)
	}
}

func TestArticleFallsBackToLogoForUnknownImage(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), `<img src="/missing.svg" data-file="Ghost.jpg">`)

	ext.Article().Render(context.Background(), out)

	markup, _ := out.HeadItem(ArticleHeadKey)
	want := `"image":{"@type":"ImageObject","url":"https://wiki.example.org/static/logo.svg","height":135,"width":135}`
	if !strings.Contains(markup, want) {
		t.Fatalf("expected logo fallback in %s", markup)
	}
}

func TestArticleUnknownHistory(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), "")

	ext.Article().Render(context.Background(), out)

	markup, _ := out.HeadItem(ArticleHeadKey)
	for _, want := range []string{
		`"author":{"@type":"Person","name":"None"}`,
		`"dateCreated":0`,
		`"datePublished":0`,
		`"dateModified":0`,
	} {
		if !strings.Contains(markup, want) {
			t.Fatalf("expected %s in %s", want, markup)
		}
	}
}

func TestArticleBlankAuthorIsNone(t *testing.T) {
	t.Parallel()

	pages := stubPages{first: &wiki.Revision{Timestamp: "20200101120000", UserName: "  "}}
	ext := newExtension(t, testSite(), pages, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), "")

	ext.Article().Render(context.Background(), out)

	markup, _ := out.HeadItem(ArticleHeadKey)
	if !strings.Contains(markup, `"name":"None"`) {
		t.Fatalf("expected author None in %s", markup)
	}
	if !strings.Contains(markup, `"dateCreated":"2020-01-01T12:00:00+00:00"`) {
		t.Fatalf("expected creation date in %s", markup)
	}
}

func TestArticleLookupErrorsDegradeToDefaults(t *testing.T) {
	t.Parallel()

	pages := stubPages{
		firstErr:   eris.New("database is locked"),
		touchedErr: eris.New("database is locked"),
	}
	ext := newExtension(t, testSite(), pages, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), `<img src="x" data-file="Broken.jpg">`)

	ext.Article().Render(context.Background(), out)

	markup, ok := out.HeadItem(ArticleHeadKey)
	if !ok {
		t.Fatalf("expected article to be emitted despite lookup errors")
	}
	for _, want := range []string{`"name":"None"`, `"dateModified":0`, `"height":135`} {
		if !strings.Contains(markup, want) {
			t.Fatalf("expected %s in %s", want, markup)
		}
	}
}

func TestGeneratorsSkipNonContentPages(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})

	for _, raw := range []string{"Talk:Dogs", "User:Alice", "Special:Search", ""} {
		out := newOutput(t, raw, testSite(), "")
		ext.Article().Render(context.Background(), out)
		ext.WebSite().Render(context.Background(), out)
		if _, ok := out.HeadItem(ArticleHeadKey); ok {
			t.Fatalf("expected no article for %q", raw)
		}
		if _, ok := out.HeadItem(WebSiteHeadKey); ok {
			t.Fatalf("expected no website for %q", raw)
		}
	}
}

func TestArticleEscapesMarkupInTitle(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})
	out := newOutput(t, "Cats & dogs", testSite(), "")

	ext.Article().Render(context.Background(), out)

	markup, _ := out.HeadItem(ArticleHeadKey)
	body := scriptBody(t, markup)
	if strings.Contains(body, "&") {
		t.Fatalf("expected & to be escaped in %s", body)
	}
	if !strings.Contains(body, `"headline":"Cats \u0026 dogs"`) {
		t.Fatalf("expected escaped headline in %s", body)
	}
}

func TestWebSiteDocument(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), "")

	ext.WebSite().Render(context.Background(), out)

	markup, ok := out.HeadItem(WebSiteHeadKey)
	if !ok {
		t.Fatalf("expected %s head item", WebSiteHeadKey)
	}

	want := `{"@context":"http://schema.org","@type":"WebSite","url":"https://wiki.example.org",` +
		`"potentialAction":{"@type":"SearchAction","target":"https://wiki.example.org/index.php?search={search_term_string}",` +
		`"query-input":"required name=search_term_string"}}`
	if got := scriptBody(t, markup); got != want {
		t.Fatalf("unexpected website document\nwant: %s\ngot:  %s", want, got)
	}
}

func TestSearchTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		server, scriptPath, want string
	}{
		{"https://wiki.example.org", "", "https://wiki.example.org/index.php?search={search_term_string}"},
		{"https://wiki.example.org", "/w", "https://wiki.example.org/w/index.php?search={search_term_string}"},
	}

	for _, tc := range cases {
		if got := SearchTarget(tc.server, tc.scriptPath); got != tc.want {
			t.Fatalf("SearchTarget(%q, %q) = %q, want %q", tc.server, tc.scriptPath, got, tc.want)
		}
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	t.Parallel()

	pages := stubPages{first: &wiki.Revision{Timestamp: "20200101120000", UserName: "alice"}}
	ext := newExtension(t, testSite(), pages, stubFiles{})
	out := newOutput(t, "Dogs", testSite(), "")

	ext.Render(context.Background(), out)
	first := out.HeadItems()
	ext.Render(context.Background(), out)
	second := out.HeadItems()

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two head items, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("head item %d changed between renders", i)
		}
	}
	if !strings.Contains(second[0], `"@type":"Article"`) {
		t.Fatalf("expected article head item first, got %s", second[0])
	}
}

func TestRenderOnNonContentPageAddsNothing(t *testing.T) {
	t.Parallel()

	ext := newExtension(t, testSite(), stubPages{}, stubFiles{})

	for _, raw := range []string{"Talk:Dogs", "Special:Search", "File:Dog.jpg", ""} {
		out := newOutput(t, raw, testSite(), "")
		ext.Render(context.Background(), out)
		if items := out.HeadItems(); len(items) != 0 {
			t.Fatalf("expected no head items for %q, got %v", raw, items)
		}
	}
}

func TestTimestampMarshalling(t *testing.T) {
	t.Parallel()

	if got := convertTimestamp("not-a-date"); !got.IsZero() {
		t.Fatalf("expected zero timestamp, got %q", got)
	}

	zero, err := Timestamp("").MarshalJSON()
	if err != nil || string(zero) != "0" {
		t.Fatalf("expected 0, got %s (%v)", zero, err)
	}

	set, err := convertTimestamp("20211231235959").MarshalJSON()
	if err != nil || string(set) != `"2021-12-31T23:59:59+00:00"` {
		t.Fatalf("unexpected marshalled timestamp %s (%v)", set, err)
	}

	if got := convertTimestamp("20200230120000"); got != "2020-03-01T12:00:00+00:00" {
		t.Fatalf("expected out-of-range day to roll over, got %q", got)
	}
	if got := convertTimestamp("20201231235960"); got != "2021-01-01T00:00:00+00:00" {
		t.Fatalf("expected out-of-range second to roll over, got %q", got)
	}
	for _, raw := range []string{"2020023012000", "2020+230120000", "2020-02-30T12"} {
		if got := convertTimestamp(raw); !got.IsZero() {
			t.Fatalf("expected zero timestamp for %q, got %q", raw, got)
		}
	}
}
