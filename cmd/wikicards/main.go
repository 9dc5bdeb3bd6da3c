package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/urfave/cli/v2"

	"wikicards/app/internal/app/bootstrap"
	"wikicards/app/internal/config"
	applog "wikicards/app/internal/log"
	"wikicards/app/internal/output"
	"wikicards/app/internal/wiki"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newApp(os.Stdout, os.Stdin).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer, stdin io.Reader) *cli.App {
	return &cli.App{
		Name:      "wikicards",
		Usage:     "manage wiki pages and inspect their rich card markup",
		Writer:    stdout,
		Reader:    stdin,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite database path", EnvVars: []string{"DB_PATH"}},
			&cli.StringFlag{Name: "site-config", Usage: "YAML site identity file", EnvVars: []string{"SITE_CONFIG_FILE"}},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "logrus level"},
		},
		Commands: []*cli.Command{
			{
				Name:      "head",
				Usage:     "print the JSON-LD head items a page is rendered with",
				ArgsUsage: "<title>",
				Action:    headAction,
			},
			{
				Name:      "save-page",
				Usage:     "save a revision from a file or stdin",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Markdown source file, - for stdin", Value: "-"},
					&cli.StringFlag{Name: "author", Usage: "user name recorded on the revision"},
					&cli.StringFlag{Name: "comment", Usage: "edit summary"},
				},
				Action: savePageAction,
			},
			{
				Name:      "register-file",
				Usage:     "register metadata for an uploaded file",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Required: true},
					&cli.IntFlag{Name: "width"},
					&cli.IntFlag{Name: "height"},
					&cli.StringFlag{Name: "media-type"},
				},
				Action: registerFileAction,
			},
			{
				Name:      "purge",
				Usage:     "bump a page's touched timestamp",
				ArgsUsage: "<title>",
				Action:    purgeAction,
			},
		},
	}
}

// withApp loads configuration, builds the wiki components and hands them to fn.
func withApp(c *cli.Context, fn func(bootstrap.Result, config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}
	if path := c.String("site-config"); path != "" && path != cfg.SiteConfigFile {
		if err := cfg.ApplySiteFile(path); err != nil {
			return err
		}
	}
	if path := c.String("db"); path != "" {
		cfg.DBPath = path
	}

	logger, err := applog.NewLogger(c.String("log-level"))
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}
	logger.SetOutput(c.App.ErrWriter)

	built, err := bootstrap.Build(c.Context, bootstrap.Dependencies{Config: *cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := built.Cleanup(); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	return fn(built, *cfg)
}

func requireArg(c *cli.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Args().First())
	if value == "" {
		return "", eris.Errorf("%s is required", name)
	}
	return value, nil
}

func headAction(c *cli.Context) error {
	rawTitle, err := requireArg(c, "title")
	if err != nil {
		return err
	}

	return withApp(c, func(built bootstrap.Result, cfg config.Config) error {
		view, err := built.WikiService.ViewPage(c.Context, rawTitle)
		if err != nil {
			return err
		}

		out, err := output.New(&view.Title, cfg.Site, view.Page.HTML)
		if err != nil {
			return err
		}
		built.Extension.Render(c.Context, out)

		for _, item := range out.HeadItems() {
			fmt.Fprintln(c.App.Writer, item)
		}
		return nil
	})
}

func savePageAction(c *cli.Context) error {
	rawTitle, err := requireArg(c, "title")
	if err != nil {
		return err
	}

	source, err := readSource(c)
	if err != nil {
		return err
	}

	return withApp(c, func(built bootstrap.Result, cfg config.Config) error {
		view, err := built.WikiService.SavePage(c.Context, wiki.SaveInput{
			Title:   rawTitle,
			Source:  source,
			Author:  c.String("author"),
			Comment: c.String("comment"),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "saved %s (revision %d) %s\n",
			view.Title.PrefixedText(),
			view.Page.LatestRevisionID,
			view.Title.FullURL(cfg.Site.Server, cfg.Site.ArticlePath),
		)
		return nil
	})
}

func registerFileAction(c *cli.Context) error {
	name, err := requireArg(c, "name")
	if err != nil {
		return err
	}

	return withApp(c, func(built bootstrap.Result, cfg config.Config) error {
		file, err := built.WikiService.RegisterFile(c.Context, wiki.FileInput{
			Name:      name,
			URL:       c.String("url"),
			Width:     c.Int("width"),
			Height:    c.Int("height"),
			MediaType: c.String("media-type"),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "registered File:%s %dx%d %s\n", file.Name, file.Width, file.Height, file.FullURL(cfg.Site.Server))
		return nil
	})
}

func purgeAction(c *cli.Context) error {
	rawTitle, err := requireArg(c, "title")
	if err != nil {
		return err
	}

	return withApp(c, func(built bootstrap.Result, _ config.Config) error {
		if err := built.WikiService.Purge(c.Context, rawTitle); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "purged %s\n", rawTitle)
		return nil
	})
}

func readSource(c *cli.Context) (string, error) {
	path := c.String("file")
	if path == "" || path == "-" {
		raw, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", eris.Wrap(err, "reading source from stdin")
		}
		return string(raw), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "reading source file: %s", path)
	}
	return string(raw), nil
}
