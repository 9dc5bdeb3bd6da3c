package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"wikicards/app/internal/config"
	applog "wikicards/app/internal/log"
	"wikicards/app/internal/output"
	"wikicards/app/internal/richcards"
	"wikicards/app/internal/wiki"
)

func TestBuildWiresComponents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	site := config.DefaultSite()
	site.Server = "https://wiki.example.org"

	result, err := Build(ctx, Dependencies{
		Config: config.Config{
			DBPath: filepath.Join(t.TempDir(), "wiki.db"),
			Site:   site,
		},
		Logger: applog.Discard(),
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := result.Cleanup(); err != nil {
			t.Errorf("Cleanup returned error: %v", err)
		}
	})

	view, err := result.WikiService.SavePage(ctx, wiki.SaveInput{Title: "Dogs", Source: "Dogs bark.", Author: "alice"})
	if err != nil {
		t.Fatalf("SavePage returned error: %v", err)
	}

	out, err := output.New(&view.Title, site, view.Page.HTML)
	if err != nil {
		t.Fatalf("output.New returned error: %v", err)
	}
	result.Extension.Render(ctx, out)

	markup, ok := out.HeadItem(richcards.ArticleHeadKey)
	if !ok {
		t.Fatalf("expected article head item")
	}
	for _, want := range []string{`"name":"alice"`, `"@id":"https://wiki.example.org/wiki/Dogs"`} {
		if !strings.Contains(markup, want) {
			t.Fatalf("expected %s in %s", want, markup)
		}
	}
}

func TestBuildRejectsMissingDatabasePath(t *testing.T) {
	t.Parallel()

	if _, err := Build(context.Background(), Dependencies{Config: config.Config{Site: config.DefaultSite()}}); err == nil {
		t.Fatalf("expected error without database path")
	}
}
