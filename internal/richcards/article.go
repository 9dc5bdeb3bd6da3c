package richcards

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"wikicards/app/internal/config"
	"wikicards/app/internal/title"
	"wikicards/app/internal/wiki"
)

// ArticleHeadKey is the head item the Article document is stored under.
const ArticleHeadKey = "RichCardsArticle"

const (
	unknownAuthor      = "None"
	defaultImageWidth  = 135
	defaultImageHeight = 135
)

// Illustration is the image an Article is presented with.
type Illustration struct {
	URL    string
	Width  int
	Height int
}

// ArticleGenerator emits the Article document for content pages.
type ArticleGenerator struct {
	site     config.Site
	pages    PageLookup
	files    wiki.FileFinder
	reporter reporter
}

// Render adds the Article head item to out when out's title is a content page.
// Lookup failures are reported and replaced by defaults; Render never fails.
func (g ArticleGenerator) Render(ctx context.Context, out Output) {
	t := out.Title()
	if t == nil || !t.IsContentPage() {
		return
	}

	fields := logrus.Fields{"title": t.PrefixedText(), "head_item": ArticleHeadKey}

	created, author := g.creation(ctx, *t, fields)
	modified := g.modified(ctx, *t, fields)
	image := g.illustration(ctx, out, fields)
	logoURL := g.site.Server + g.site.Logo

	doc := Article{
		Context: schemaContext,
		Type:    "Article",
		MainEntityOfPage: WebPage{
			Type: "WebPage",
			ID:   t.FullURL(g.site.Server, g.site.ArticlePath),
		},
		Author: Person{
			Type: "Person",
			Name: author,
		},
		Headline:      t.Text,
		DateCreated:   created,
		DatePublished: created,
		DateModified:  modified,
		DiscussionURL: t.TalkPage().FullURL(g.site.Server, g.site.ArticlePath),
		Image: ImageObject{
			Type:   "ImageObject",
			URL:    image.URL,
			Height: image.Height,
			Width:  image.Width,
		},
		Publisher: Organization{
			Type: "Organization",
			Name: g.site.Name,
			Logo: Logo{
				Type: "ImageObject",
				URL:  logoURL,
			},
		},
		Description: t.Text,
	}

	emit(ctx, out, ArticleHeadKey, doc, g.reporter, fields)
}

// creation returns the first revision's timestamp and author name.
func (g ArticleGenerator) creation(ctx context.Context, t title.Title, fields logrus.Fields) (Timestamp, string) {
	rev, err := g.pages.FirstRevision(ctx, t)
	if err != nil {
		g.reporter.record(ctx, fields, err, "looking up first revision")
		return "", unknownAuthor
	}
	if rev == nil {
		return "", unknownAuthor
	}

	author := strings.TrimSpace(rev.UserName)
	if author == "" {
		author = unknownAuthor
	}

	return convertTimestamp(rev.Timestamp), author
}

func (g ArticleGenerator) modified(ctx context.Context, t title.Title, fields logrus.Fields) Timestamp {
	touched, err := g.pages.Touched(ctx, t)
	if err != nil {
		g.reporter.record(ctx, fields, err, "looking up page touched timestamp")
		return ""
	}
	return convertTimestamp(touched)
}

// illustration resolves the first image the page shows, falling back to the site logo.
func (g ArticleGenerator) illustration(ctx context.Context, out Output, fields logrus.Fields) Illustration {
	fallback := Illustration{
		URL:    g.site.Server + g.site.Logo,
		Width:  defaultImageWidth,
		Height: defaultImageHeight,
	}

	candidates := out.FileSearchOptions()
	if len(candidates) == 0 {
		return fallback
	}

	file, err := g.files.FindFile(ctx, candidates[0])
	if err != nil {
		g.reporter.record(ctx, fields, err, "looking up illustration file")
		return fallback
	}
	if file == nil {
		return fallback
	}

	return Illustration{
		URL:    file.FullURL(g.site.Server),
		Width:  file.Width,
		Height: file.Height,
	}
}
