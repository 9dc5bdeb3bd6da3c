package wiki

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	applog "wikicards/app/internal/log"
	"wikicards/app/internal/title"
)

// Service defines higher-level wiki operations built on top of the repository and renderer.
type Service interface {
	ViewPage(ctx context.Context, rawTitle string) (*PageView, error)
	SavePage(ctx context.Context, input SaveInput) (*PageView, error)
	RegisterFile(ctx context.Context, input FileInput) (*File, error)
	Purge(ctx context.Context, rawTitle string) error
	Search(ctx context.Context, query string, limit int) (*SearchOutcome, error)
	CountPages(ctx context.Context) (int64, error)
}

type service struct {
	repo      Repository
	renderer  *Renderer
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
}

var _ Service = (*service)(nil)

var (
	// ErrPageNotFound indicates the requested title has no stored page.
	ErrPageNotFound = eris.New("page not found")
	// ErrInvalidInput marks edits and file registrations rejected by validation.
	ErrInvalidInput = eris.New("invalid input")
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxSourceBytes     = 2 << 20
)

// PageView is a stored page together with its parsed title.
type PageView struct {
	Title title.Title
	Page  Page
}

// SaveInput describes an edit.
type SaveInput struct {
	Title   string
	Source  string
	Author  string
	Comment string
}

// FileInput describes file metadata to register in the file repository.
type FileInput struct {
	Name      string
	URL       string
	Width     int
	Height    int
	MediaType string
}

// SearchResult represents a page returned by the search service.
type SearchResult struct {
	Title title.Title
}

// SearchOutcome is either an exact title match, which callers redirect to, or a result list.
type SearchOutcome struct {
	Exact   *title.Title
	Results []SearchResult
}

// NewService wires the wiki service with its dependencies.
func NewService(repo Repository, renderer *Renderer, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("wiki repository is required")
	}
	if renderer == nil {
		return nil, eris.New("page renderer is required")
	}

	return &service{
		repo:      repo,
		renderer:  renderer,
		logger:    logger,
		sentryHub: hub,
		now:       time.Now,
	}, nil
}

func (s *service) ViewPage(ctx context.Context, rawTitle string) (*PageView, error) {
	t, err := title.Parse(rawTitle)
	if err != nil {
		return nil, err
	}

	page, err := s.repo.GetPage(ctx, t)
	if err != nil {
		s.recordError(ctx, logrus.Fields{"title": t.PrefixedText()}, err, "retrieving page from repository")
		return nil, eris.Wrapf(err, "retrieving page: %s", t.PrefixedText())
	}

	if page == nil {
		return nil, eris.Wrapf(ErrPageNotFound, "viewing page: %s", t.PrefixedText())
	}

	return &PageView{Title: t, Page: *page}, nil
}

func (s *service) SavePage(ctx context.Context, input SaveInput) (*PageView, error) {
	t, err := title.Parse(input.Title)
	if err != nil {
		return nil, err
	}

	if t.Namespace == title.NamespaceSpecial {
		return nil, eris.Wrapf(ErrInvalidInput, "special pages cannot be edited: %s", t.PrefixedText())
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		return nil, eris.Wrap(ErrInvalidInput, "page source is required")
	}
	if len(source) > maxSourceBytes {
		return nil, eris.Wrapf(ErrInvalidInput, "page source exceeds %d bytes", maxSourceBytes)
	}

	rendered, err := s.renderer.Render(ctx, source)
	if err != nil {
		s.recordError(ctx, logrus.Fields{"title": t.PrefixedText()}, err, "rendering page source")
		return nil, eris.Wrapf(err, "rendering page: %s", t.PrefixedText())
	}

	rev := &Revision{
		Timestamp: FormatTimestamp(s.now()),
		UserName:  strings.TrimSpace(input.Author),
		Comment:   strings.TrimSpace(input.Comment),
		Source:    source,
	}

	page, err := s.repo.SaveRevision(ctx, t, rev, rendered.HTML)
	if err != nil {
		s.recordError(ctx, logrus.Fields{"title": t.PrefixedText()}, err, "persisting revision")
		return nil, eris.Wrapf(err, "saving page: %s", t.PrefixedText())
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"title":       t.PrefixedText(),
			"revision_id": rev.ID,
			"files":       len(rendered.Files),
		}).Info("page saved")
	}

	return &PageView{Title: t, Page: *page}, nil
}

func (s *service) RegisterFile(ctx context.Context, input FileInput) (*File, error) {
	fileURL := strings.TrimSpace(input.URL)
	if fileURL == "" {
		return nil, eris.Wrap(ErrInvalidInput, "file url is required")
	}
	if input.Width < 0 || input.Height < 0 {
		return nil, eris.Wrap(ErrInvalidInput, "file dimensions must not be negative")
	}

	file := &File{
		Name:      input.Name,
		URL:       fileURL,
		Width:     input.Width,
		Height:    input.Height,
		MediaType: strings.TrimSpace(input.MediaType),
	}

	if err := s.repo.SaveFile(ctx, file); err != nil {
		s.recordError(ctx, logrus.Fields{"file": input.Name}, err, "registering file")
		return nil, eris.Wrapf(err, "registering file: %s", input.Name)
	}

	return file, nil
}

func (s *service) Purge(ctx context.Context, rawTitle string) error {
	t, err := title.Parse(rawTitle)
	if err != nil {
		return err
	}

	if err := s.repo.Touch(ctx, t, FormatTimestamp(s.now())); err != nil {
		if !eris.Is(err, ErrPageNotFound) {
			s.recordError(ctx, logrus.Fields{"title": t.PrefixedText()}, err, "purging page")
		}
		return eris.Wrapf(err, "purging page: %s", t.PrefixedText())
	}

	return nil
}

func (s *service) Search(ctx context.Context, query string, limit int) (*SearchOutcome, error) {
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return nil, eris.Wrap(ErrInvalidInput, "query is required")
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if t, err := title.Parse(trimmedQuery); err == nil {
		page, err := s.repo.GetPage(ctx, t)
		if err != nil {
			s.recordError(ctx, logrus.Fields{"query": trimmedQuery}, err, "looking up exact title")
			return nil, eris.Wrap(err, "looking up exact title")
		}
		if page != nil {
			return &SearchOutcome{Exact: &t}, nil
		}
	}

	pages, err := s.repo.SearchTitles(ctx, trimmedQuery, limit)
	if err != nil {
		s.recordError(ctx, logrus.Fields{"query": trimmedQuery}, err, "performing search")
		return nil, eris.Wrap(err, "searching titles")
	}

	outcome := &SearchOutcome{Results: make([]SearchResult, 0, len(pages))}
	for _, page := range pages {
		t, err := title.Parse(page.Title)
		if err != nil {
			continue
		}
		outcome.Results = append(outcome.Results, SearchResult{Title: t})
	}

	return outcome, nil
}

func (s *service) CountPages(ctx context.Context) (int64, error) {
	count, err := s.repo.CountPages(ctx)
	if err != nil {
		s.recordError(ctx, nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}
	return count, nil
}

func (s *service) recordError(ctx context.Context, fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	applog.CaptureError(ctx, s.sentryHub, err)
}
