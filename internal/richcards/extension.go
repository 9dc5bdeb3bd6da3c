// Package richcards adds schema.org JSON-LD documents to page heads so search engines can
// show rich cards for wiki articles and a search box for the site.
package richcards

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikicards/app/internal/config"
	applog "wikicards/app/internal/log"
	"wikicards/app/internal/title"
	"wikicards/app/internal/wiki"
)

// Output is the part of a page render the generators read from and write to.
type Output interface {
	Title() *title.Title
	FileSearchOptions() []string
	Server() string
	ScriptPath() string
	AddHeadItem(key, markup string)
}

// PageLookup reads the page history the Article document is built from.
type PageLookup interface {
	FirstRevision(ctx context.Context, t title.Title) (*wiki.Revision, error)
	Touched(ctx context.Context, t title.Title) (string, error)
}

// Options configures the extension.
type Options struct {
	Site      config.Site
	Pages     PageLookup
	Files     wiki.FileFinder
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Extension runs both generators against a page output.
type Extension struct {
	site     config.Site
	pages    PageLookup
	files    wiki.FileFinder
	reporter reporter
}

// New validates the options and builds the extension.
func New(opts Options) (*Extension, error) {
	if opts.Pages == nil {
		return nil, eris.New("page lookup is required")
	}
	if opts.Files == nil {
		return nil, eris.New("file finder is required")
	}
	if opts.Site.Server == "" {
		return nil, eris.New("site server is required")
	}

	return &Extension{
		site:     opts.Site,
		pages:    opts.Pages,
		files:    opts.Files,
		reporter: reporter{logger: opts.Logger, hub: opts.SentryHub},
	}, nil
}

// Article returns a generator for a single render.
func (e *Extension) Article() ArticleGenerator {
	return ArticleGenerator{site: e.site, pages: e.pages, files: e.files, reporter: e.reporter}
}

// WebSite returns a generator for a single render.
func (e *Extension) WebSite() WebSiteGenerator {
	return WebSiteGenerator{reporter: e.reporter}
}

// Render is the before-page-display hook. The Article item is added first.
func (e *Extension) Render(ctx context.Context, out Output) {
	e.Article().Render(ctx, out)
	e.WebSite().Render(ctx, out)
}

func emit(ctx context.Context, out Output, key string, doc any, r reporter, fields logrus.Fields) {
	markup, err := ScriptTag(doc)
	if err != nil {
		r.record(ctx, fields, err, "serialising head item")
		return
	}
	out.AddHeadItem(key, markup)
}

type reporter struct {
	logger *logrus.Logger
	hub    *sentry.Hub
}

func (r reporter) record(ctx context.Context, fields logrus.Fields, err error, message string) {
	if r.logger != nil {
		r.logger.WithFields(fields).WithField("error", err.Error()).Warn(message)
	}
	applog.CaptureError(ctx, r.hub, err)
}
