package wiki

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"wikicards/app/internal/title"
)

// FileAttribute marks rendered images with the key of the file they show.
const FileAttribute = "data-file"

const defaultMissingFileURL = "/static/missing-file.svg"

// FileFinder resolves file records by name.
type FileFinder interface {
	FindFile(ctx context.Context, name string) (*File, error)
}

// RendererOptions configures page rendering.
type RendererOptions struct {
	Files          FileFinder
	Server         string
	ArticlePath    string
	MissingFileURL string
	Logger         *logrus.Logger
}

// Renderer turns page source (Markdown) into sanitised HTML.
//
// Image destinations of the form File:Name are looked up in the file repository: the
// image points at the stored file URL (or a placeholder when the file is unknown) and
// carries a data-file attribute with the file key. Link destinations without a scheme
// are treated as page titles.
type Renderer struct {
	markdown       goldmark.Markdown
	policy         *bluemonday.Policy
	files          FileFinder
	server         string
	articlePath    string
	missingFileURL string
	logger         *logrus.Logger
}

// Rendered is the output of a render pass.
type Rendered struct {
	HTML  string
	Files []string
}

// NewRenderer builds a renderer.
func NewRenderer(opts RendererOptions) (*Renderer, error) {
	if opts.Files == nil {
		return nil, eris.New("file finder is required")
	}
	if !strings.Contains(opts.ArticlePath, "$1") {
		return nil, eris.Errorf("article path must contain $1: %q", opts.ArticlePath)
	}

	missing := opts.MissingFileURL
	if missing == "" {
		missing = defaultMissingFileURL
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowDataAttributes()

	return &Renderer{
		markdown:       goldmark.New(),
		policy:         policy,
		files:          opts.Files,
		server:         opts.Server,
		articlePath:    opts.ArticlePath,
		missingFileURL: missing,
		logger:         opts.Logger,
	}, nil
}

// Render converts source to HTML and reports the files it references, in order of first use.
func (r *Renderer) Render(ctx context.Context, source string) (Rendered, error) {
	src := []byte(source)
	doc := r.markdown.Parser().Parse(text.NewReader(src))

	var files []string
	seen := make(map[string]struct{})

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Image:
			key, ok := fileReference(string(n.Destination))
			if !ok {
				return ast.WalkContinue, nil
			}

			n.Destination = []byte(r.resolveFile(ctx, key))
			n.SetAttributeString(FileAttribute, []byte(key))

			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				files = append(files, key)
			}
		case *ast.Link:
			if local, ok := r.pageLink(string(n.Destination)); ok {
				n.Destination = []byte(local)
			}
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return Rendered{}, eris.Wrap(err, "walking markdown document")
	}

	var buf bytes.Buffer
	if err := r.markdown.Renderer().Render(&buf, src, doc); err != nil {
		return Rendered{}, eris.Wrap(err, "rendering markdown")
	}

	return Rendered{
		HTML:  strings.TrimSpace(r.policy.Sanitize(buf.String())),
		Files: files,
	}, nil
}

func (r *Renderer) resolveFile(ctx context.Context, key string) string {
	file, err := r.files.FindFile(ctx, key)
	if err != nil {
		if r.logger != nil {
			r.logger.WithField("error", err.Error()).WithField("file", key).Warn("resolving file during render")
		}
		return r.missingFileURL
	}
	if file == nil {
		return r.missingFileURL
	}
	return file.FullURL(r.server)
}

func (r *Renderer) pageLink(destination string) (string, bool) {
	trimmed := strings.TrimSpace(destination)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	if parsed, err := url.Parse(trimmed); err == nil && parsed.Scheme != "" && !isNamespacePrefix(parsed.Scheme) {
		return "", false
	}

	t, err := title.Parse(trimmed)
	if err != nil {
		return "", false
	}
	return t.LocalURL(r.articlePath), true
}

func fileReference(destination string) (string, bool) {
	t, err := title.Parse(destination)
	if err != nil || t.Namespace != title.NamespaceFile {
		return "", false
	}
	return t.DBKey(), true
}

// isNamespacePrefix tells "Talk:Dogs" apart from "mailto:x" when both parse with a scheme.
func isNamespacePrefix(scheme string) bool {
	t, err := title.Parse(scheme + ":x")
	return err == nil && t.Namespace != title.NamespaceMain
}
