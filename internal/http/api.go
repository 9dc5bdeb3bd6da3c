package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"wikicards/app/internal/wiki"
)

type savePageInput struct {
	Title string `path:"title" doc:"Page title, namespace prefix included"`
	Body  struct {
		Source  string `json:"source" minLength:"1" doc:"Markdown source of the new revision"`
		Author  string `json:"author,omitempty" doc:"User name recorded on the revision"`
		Comment string `json:"comment,omitempty" doc:"Edit summary"`
	}
}

type pageBody struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Touched    string `json:"touched"`
	RevisionID uint   `json:"revision_id"`
}

type pageResponse struct {
	Body pageBody
}

type purgeInput struct {
	Title string `path:"title"`
}

type registerFileInput struct {
	Name string `path:"name" doc:"File name, with or without the File: prefix"`
	Body struct {
		URL       string `json:"url" minLength:"1" doc:"Absolute URL or site-relative path of the file"`
		Width     int    `json:"width" minimum:"0"`
		Height    int    `json:"height" minimum:"0"`
		MediaType string `json:"media_type,omitempty"`
	}
}

type fileResponse struct {
	Body struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
}

func (s *Server) registerPageAPIRoutes() {
	huma.Put(s.api, "/api/pages/{title}", s.savePageHandler, func(op *huma.Operation) {
		op.Summary = "Save a page revision"
	})
	huma.Post(s.api, "/api/pages/{title}/purge", s.purgeHandler, func(op *huma.Operation) {
		op.Summary = "Purge a page"
		op.DefaultStatus = stdhttp.StatusNoContent
	})
}

func (s *Server) registerFileAPIRoute() {
	huma.Put(s.api, "/api/files/{name}", s.registerFileHandler, func(op *huma.Operation) {
		op.Summary = "Register file metadata"
	})
}

func (s *Server) savePageHandler(ctx context.Context, input *savePageInput) (*pageResponse, error) {
	view, err := s.wiki.SavePage(ctx, wiki.SaveInput{
		Title:   input.Title,
		Source:  input.Body.Source,
		Author:  input.Body.Author,
		Comment: input.Body.Comment,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "saving page", logrus.Fields{"title": input.Title})
	}

	return &pageResponse{Body: pageBody{
		Title:      view.Title.PrefixedText(),
		URL:        view.Title.FullURL(s.site.Server, s.site.ArticlePath),
		Touched:    view.Page.Touched,
		RevisionID: view.Page.LatestRevisionID,
	}}, nil
}

func (s *Server) purgeHandler(ctx context.Context, input *purgeInput) (*struct{}, error) {
	if err := s.wiki.Purge(ctx, input.Title); err != nil {
		return nil, s.apiError(ctx, err, "purging page", logrus.Fields{"title": input.Title})
	}
	return nil, nil
}

func (s *Server) registerFileHandler(ctx context.Context, input *registerFileInput) (*fileResponse, error) {
	file, err := s.wiki.RegisterFile(ctx, wiki.FileInput{
		Name:      input.Name,
		URL:       input.Body.URL,
		Width:     input.Body.Width,
		Height:    input.Body.Height,
		MediaType: input.Body.MediaType,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "registering file", logrus.Fields{"file": input.Name})
	}

	resp := &fileResponse{}
	resp.Body.Name = file.Name
	resp.Body.URL = file.FullURL(s.site.Server)
	resp.Body.Width = file.Width
	resp.Body.Height = file.Height
	return resp, nil
}

// apiError maps service failures onto Huma problem responses. Only unexpected failures are recorded.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	status, text := classifyError(err)
	switch status {
	case stdhttp.StatusBadRequest:
		return huma.Error400BadRequest(text)
	case stdhttp.StatusNotFound:
		return huma.Error404NotFound(text)
	default:
		s.recordError(ctx, err, message, fields)
		return huma.Error500InternalServerError(text)
	}
}
