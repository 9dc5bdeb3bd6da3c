package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Layout wraps body in the site chrome.
func Layout(data LayoutData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString("<title>")
		b.WriteString(templ.EscapeString(pageTitle(data)))
		b.WriteString("</title>")
		for _, item := range data.HeadItems {
			b.WriteString(item)
		}
		b.WriteString(`</head><body><header><a href="/"><img src="`)
		b.WriteString(templ.EscapeString(data.LogoURL))
		b.WriteString(`" alt="" width="40" height="40"> `)
		b.WriteString(templ.EscapeString(data.SiteName))
		b.WriteString(`</a><form method="get" action="`)
		b.WriteString(templ.EscapeString(data.SearchURL))
		b.WriteString(`"><input type="search" name="search" aria-label="Search"></form></header><main>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, "</main></body></html>")
		return err
	})
}

// WikiPage renders a stored page.
func WikiPage(data WikiPageData) templ.Component {
	return Layout(data.Layout, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<article><h1>")
		b.WriteString(templ.EscapeString(data.Heading))
		b.WriteString("</h1>")
		b.WriteString(data.HTML)
		if data.Touched != "" {
			b.WriteString(`<footer>Last modified <time>`)
			b.WriteString(templ.EscapeString(data.Touched))
			b.WriteString("</time></footer>")
		}
		b.WriteString("</article>")
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// SearchPage lists the titles matching a query.
func SearchPage(data SearchPageData) templ.Component {
	return Layout(data.Layout, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>Search results</h1>")
		if data.ErrorMessage != "" {
			b.WriteString(`<p class="error">`)
			b.WriteString(templ.EscapeString(data.ErrorMessage))
			b.WriteString("</p>")
		} else if len(data.Results) == 0 {
			b.WriteString("<p>No pages match <strong>")
			b.WriteString(templ.EscapeString(data.Query))
			b.WriteString("</strong>.</p>")
		} else {
			b.WriteString("<ul>")
			for _, result := range data.Results {
				b.WriteString(`<li><a href="`)
				b.WriteString(templ.EscapeString(result.URL))
				b.WriteString(`">`)
				b.WriteString(templ.EscapeString(result.Title))
				b.WriteString("</a></li>")
			}
			b.WriteString("</ul>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// ErrorPage renders a status page.
func ErrorPage(data ErrorPageData) templ.Component {
	return Layout(data.Layout, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>")
		b.WriteString(templ.EscapeString(data.StatusLabel))
		b.WriteString("</h1><p>")
		b.WriteString(templ.EscapeString(data.Message))
		b.WriteString("</p>")
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func pageTitle(data LayoutData) string {
	if data.Title == "" || data.Title == data.SiteName {
		return data.SiteName
	}
	return data.Title + " - " + data.SiteName
}
