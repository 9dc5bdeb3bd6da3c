package richcards

import (
	"context"

	"github.com/sirupsen/logrus"
)

// WebSiteHeadKey is the head item the WebSite document is stored under.
const WebSiteHeadKey = "RichCardsWebSite"

const (
	searchPlaceholder = "{search_term_string}"
	searchQueryInput  = "required name=search_term_string"
)

// WebSiteGenerator emits the WebSite document with its site search action.
type WebSiteGenerator struct {
	reporter reporter
}

// Render adds the WebSite head item to out when out's title is a content page.
func (g WebSiteGenerator) Render(ctx context.Context, out Output) {
	if t := out.Title(); t == nil || !t.IsContentPage() {
		return
	}

	doc := WebSite{
		Context: schemaContext,
		Type:    "WebSite",
		URL:     out.Server(),
		PotentialAction: SearchAction{
			Type:       "SearchAction",
			Target:     SearchTarget(out.Server(), out.ScriptPath()),
			QueryInput: searchQueryInput,
		},
	}

	emit(ctx, out, WebSiteHeadKey, doc, g.reporter, logrus.Fields{"head_item": WebSiteHeadKey})
}

// SearchTarget is the URL template search engines fill with the query.
func SearchTarget(server, scriptPath string) string {
	return server + scriptPath + "/index.php?search=" + searchPlaceholder
}
