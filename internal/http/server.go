package http

import (
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikicards/app/internal/config"
	"wikicards/app/internal/richcards"
	"wikicards/app/internal/wiki"
)

const apiVersion = "1.0.0"

// Options configures the HTTP server wiring.
type Options struct {
	WikiService wiki.Service
	Extension   *richcards.Extension
	Site        config.Site
	Database    *gorm.DB
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimit   config.RateLimit
}

// Server wires the HTTP transport layer via Huma and templ components.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	wiki        wiki.Service
	extension   *richcards.Extension
	site        config.Site
	logger      *logrus.Logger
	sentry      *sentry.Hub
	db          *gorm.DB
	rateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.WikiService == nil {
		return nil, eris.New("wiki service is required")
	}
	if opts.Extension == nil {
		return nil, eris.New("rich cards extension is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}
	if opts.Site.Server == "" {
		return nil, eris.New("site server is required")
	}

	rateLimiter, err := NewRateLimiter(opts.RateLimit)
	if err != nil {
		return nil, err
	}

	mux := stdhttp.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig(opts.Site.Name, apiVersion))

	srv := &Server{
		api:         api,
		mux:         mux,
		wiki:        opts.WikiService,
		extension:   opts.Extension,
		site:        opts.Site,
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		db:          opts.Database,
		rateLimiter: rateLimiter,
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /static/", staticHandler())

	s.registerHomeRoute()
	s.registerWikiRoute()
	s.registerIndexRoute()
	s.registerPageAPIRoutes()
	s.registerFileAPIRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
