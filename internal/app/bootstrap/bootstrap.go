// Package bootstrap composes the storage, wiki service and rich cards extension shared by
// the server and the operator CLI.
package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikicards/app/internal/config"
	"wikicards/app/internal/db"
	"wikicards/app/internal/richcards"
	"wikicards/app/internal/wiki"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	WikiService wiki.Service
	Repository  *wiki.GormRepository
	Extension   *richcards.Extension
	Database    *gorm.DB
	Cleanup     func() error
}

// Build opens and migrates the database and wires the components on top of it. The caller
// owns Result.Cleanup.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	conn, err := db.Open(db.Options{Path: deps.Config.DBPath, Logger: deps.Logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(conn); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := wiki.Migrate(ctx, conn, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running wiki migrations"))
	}

	repo, err := wiki.NewRepository(conn, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating wiki repository"))
	}

	site := deps.Config.Site

	renderer, err := wiki.NewRenderer(wiki.RendererOptions{
		Files:       repo,
		Server:      site.Server,
		ArticlePath: site.ArticlePath,
		Logger:      deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page renderer"))
	}

	wikiService, err := wiki.NewService(repo, renderer, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating wiki service"))
	}

	extension, err := richcards.New(richcards.Options{
		Site:      site,
		Pages:     repo,
		Files:     repo,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating rich cards extension"))
	}

	return Result{
		WikiService: wikiService,
		Repository:  repo,
		Extension:   extension,
		Database:    conn,
		Cleanup: func() error {
			return db.Close(conn)
		},
	}, nil
}
