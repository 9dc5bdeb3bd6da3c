package output

import (
	"reflect"
	"testing"

	"wikicards/app/internal/config"
	"wikicards/app/internal/title"
)

func TestNewCollectsFileSearchOptions(t *testing.T) {
	t.Parallel()

	body := `<p><img src="/a.jpg" data-file="Dog.jpg"> <img src="/b.png"></p>` +
		`<p><img src="/c.png" data-file="Cat.png"><img src="/a.jpg" data-file="Dog.jpg"></p>`

	dogs := title.MustParse("Dogs")
	page, err := New(&dogs, config.DefaultSite(), body)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	want := []string{"Dog.jpg", "Cat.png"}
	if got := page.FileSearchOptions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected file search options %v, got %v", want, got)
	}
}

func TestNewWithEmptyBody(t *testing.T) {
	t.Parallel()

	page, err := New(nil, config.DefaultSite(), "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if page.Title() != nil {
		t.Fatalf("expected nil title")
	}

	if len(page.FileSearchOptions()) != 0 {
		t.Fatalf("expected no file search options, got %v", page.FileSearchOptions())
	}
}

func TestAddHeadItemOverwritesByKey(t *testing.T) {
	t.Parallel()

	page, err := New(nil, config.DefaultSite(), "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	page.AddHeadItem("first", "<meta name=a>")
	page.AddHeadItem("second", "<meta name=b>")
	page.AddHeadItem("first", "<meta name=c>")

	want := []string{"<meta name=c>", "<meta name=b>"}
	if got := page.HeadItems(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected head items %v, got %v", want, got)
	}

	if markup, ok := page.HeadItem("second"); !ok || markup != "<meta name=b>" {
		t.Fatalf("expected second head item, got %q (%v)", markup, ok)
	}
}

func TestSiteAccessors(t *testing.T) {
	t.Parallel()

	site := config.Site{Name: "Wiki", Server: "https://wiki.example.org", ScriptPath: "/w", ArticlePath: "/wiki/$1"}
	page, err := New(nil, site, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if page.Server() != "https://wiki.example.org" || page.ScriptPath() != "/w" {
		t.Fatalf("unexpected accessors %q %q", page.Server(), page.ScriptPath())
	}
}
