package templates

// LayoutData is shared by every page rendered inside the site chrome.
type LayoutData struct {
	SiteName  string
	Title     string
	LogoURL   string
	SearchURL string
	// HeadItems are trusted markup written into <head> unescaped.
	HeadItems []string
}

// SearchResultView represents an individual search result entry.
type SearchResultView struct {
	Title string
	URL   string
}

// SearchPageData bundles template data for the search results page.
type SearchPageData struct {
	Layout       LayoutData
	Query        string
	Results      []SearchResultView
	ErrorMessage string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Layout      LayoutData
	StatusLabel string
	Message     string
}

// WikiPageData contains the dynamic values for a stored wiki page.
type WikiPageData struct {
	Layout  LayoutData
	Heading string
	HTML    string
	Touched string
}
