package http

import (
	"bytes"
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wikicards/app/internal/db"
	"wikicards/app/internal/http/templates"
	applog "wikicards/app/internal/log"
	"wikicards/app/internal/output"
	"wikicards/app/internal/title"
	"wikicards/app/internal/wiki"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	searchResultsLimit   = 20
	mainPageTitle        = "Main Page"
	errorFallbackMessage = "Something went wrong while processing your request."
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	Body        []byte
}

type wikiInput struct {
	Title string `path:"title"`
}

type indexInput struct {
	Search string `query:"search"`
	Title  string `query:"title"`
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Pages    int64  `json:"pages"`
	}
}

func (s *Server) registerHomeRoute() {
	huma.Get(s.api, "/", s.homeHandler, htmlOperation("Redirect to the main page", stdhttp.StatusFound))
}

func (s *Server) registerWikiRoute() {
	huma.Get(s.api, "/wiki/{title}", s.wikiHandler, htmlOperation(
		"View wiki page",
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

// registerIndexRoute serves the entry point the WebSite search action targets.
func (s *Server) registerIndexRoute() {
	huma.Get(s.api, s.site.ScriptPath+"/index.php", s.indexHandler, htmlOperation(
		"Search or view a page by title",
		stdhttp.StatusFound,
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) homeHandler(_ context.Context, _ *struct{}) (*htmlResponse, error) {
	return s.redirect(title.MustParse(mainPageTitle)), nil
}

func (s *Server) wikiHandler(ctx context.Context, input *wikiInput) (*htmlResponse, error) {
	return s.showPage(ctx, input.Title)
}

func (s *Server) indexHandler(ctx context.Context, input *indexInput) (*htmlResponse, error) {
	if query := strings.TrimSpace(input.Search); query != "" {
		return s.search(ctx, query)
	}
	if raw := strings.TrimSpace(input.Title); raw != "" {
		return s.showPage(ctx, raw)
	}
	return s.redirect(title.MustParse(mainPageTitle)), nil
}

func (s *Server) showPage(ctx context.Context, rawTitle string) (*htmlResponse, error) {
	view, err := s.wiki.ViewPage(ctx, rawTitle)
	if err != nil {
		status, message := classifyError(err)
		if status == stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "loading wiki page", logrus.Fields{"title": rawTitle})
		}
		return s.renderErrorResponse(ctx, status, message), nil
	}

	out, err := output.New(&view.Title, s.site, view.Page.HTML)
	if err != nil {
		s.recordError(ctx, err, "preparing page output", logrus.Fields{"title": view.Title.PrefixedText()})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}

	s.extension.Render(ctx, out)

	data := templates.WikiPageData{
		Layout:  s.layout(view.Title.PrefixedText(), out.HeadItems()),
		Heading: view.Title.PrefixedText(),
		HTML:    out.Body(),
		Touched: displayTimestamp(view.Page.Touched),
	}

	body, err := renderComponent(ctx, templates.WikiPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering wiki page", logrus.Fields{"title": view.Title.PrefixedText()})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) search(ctx context.Context, query string) (*htmlResponse, error) {
	outcome, err := s.wiki.Search(ctx, query, searchResultsLimit)
	if err != nil {
		status, message := classifyError(err)
		if status == stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "search request failed", logrus.Fields{"query": query})
		}
		return s.renderErrorResponse(ctx, status, message), nil
	}

	if outcome.Exact != nil {
		return s.redirect(*outcome.Exact), nil
	}

	special := title.MustParse("Special:Search")
	out, err := output.New(&special, s.site, "")
	if err != nil {
		s.recordError(ctx, err, "preparing search output", logrus.Fields{"query": query})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}
	s.extension.Render(ctx, out)

	data := templates.SearchPageData{
		Layout:  s.layout("Search results", out.HeadItems()),
		Query:   query,
		Results: make([]templates.SearchResultView, 0, len(outcome.Results)),
	}
	for _, result := range outcome.Results {
		data.Results = append(data.Results, templates.SearchResultView{
			Title: result.Title.PrefixedText(),
			URL:   result.Title.LocalURL(s.site.ArticlePath),
		})
	}

	body, err := renderComponent(ctx, templates.SearchPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering search page", logrus.Fields{"query": query})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	if err := db.Ping(ctx, s.db); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
		return resp, nil
	}

	count, err := s.wiki.CountPages(ctx)
	if err != nil {
		resp.Body.Status = "degraded"
		resp.Status = stdhttp.StatusServiceUnavailable
		return resp, nil
	}
	resp.Body.Pages = count

	return resp, nil
}

func (s *Server) redirect(t title.Title) *htmlResponse {
	response := newHTMLResponse(stdhttp.StatusFound, nil)
	response.Location = t.LocalURL(s.site.ArticlePath)
	return response
}

func (s *Server) layout(pageTitle string, headItems []string) templates.LayoutData {
	return templates.LayoutData{
		SiteName:  s.site.Name,
		Title:     pageTitle,
		LogoURL:   s.site.Logo,
		SearchURL: s.site.ScriptPath + "/index.php",
		HeadItems: headItems,
	}
}

func renderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, eris.Wrap(err, "rendering component")
	}
	return buf.Bytes(), nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, title.ErrInvalidTitle):
		return stdhttp.StatusBadRequest, "The requested page title is invalid."
	case eris.Is(err, wiki.ErrInvalidInput):
		return stdhttp.StatusBadRequest, inputMessage(err)
	case eris.Is(err, wiki.ErrPageNotFound):
		return stdhttp.StatusNotFound, "There is currently no text in this page."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

// inputMessage returns the outermost message of a validation error, which names the rejected field.
func inputMessage(err error) string {
	message := err.Error()
	if i := strings.Index(message, ": "); i > 0 {
		message = message[:i]
	}
	if message == "" {
		return "The request is invalid."
	}
	return strings.ToUpper(message[:1]) + message[1:] + "."
}

func displayTimestamp(raw string) string {
	parsed, err := wiki.ParseTimestamp(raw)
	if err != nil {
		return ""
	}
	return parsed.Format("15:04, 2 January 2006")
}

// renderErrorResponse renders the error page for status. A failing template degrades to a bare
// HTML body so callers always have something to send.
func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) *htmlResponse {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	template := templates.ErrorPage(templates.ErrorPageData{
		Layout:      s.layout(label, nil),
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, template)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback)
	}

	return newHTMLResponse(status, body)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	applog.CaptureError(ctx, s.sentry, err)
}
