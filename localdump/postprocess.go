package localdump

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	mdplugin "github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

type PostProcessOptions struct {
	ExtractZips bool
	ConvertHTML bool

	// Relative links in converted HTML are resolved against this, usually the Canvas instance.
	LinkBase *url.URL

	Logger *slog.Logger
}

type postProcessFunc func(ctx context.Context, rel RelativePath) error

// PostProcessor runs follow-up work on freshly written files, picked by file extension.
type PostProcessor struct {
	store    *Store
	opts     PostProcessOptions
	logger   *slog.Logger
	handlers map[string]postProcessFunc

	extractions singleflight.Group
}

func NewPostProcessor(store *Store, opts PostProcessOptions) *PostProcessor {
	p := &PostProcessor{
		store:  store,
		opts:   opts,
		logger: opts.Logger,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	p.handlers = map[string]postProcessFunc{
		".ppt":  p.convertSlides,
		".pptx": p.convertSlides,
	}
	if opts.ExtractZips {
		p.handlers[".zip"] = p.extractZip
	}
	if opts.ConvertHTML {
		p.handlers[".html"] = p.convertHTML
		p.handlers[".htm"] = p.convertHTML
	}

	return p
}

// Process runs the handler for rel's extension, if there is one.  Unknown extensions are fine.
func (p *PostProcessor) Process(ctx context.Context, rel RelativePath) error {
	handler, ok := p.handlers[extension(rel)]
	if !ok {
		return nil
	}

	return handler(ctx, rel)
}

func extension(rel RelativePath) string {
	return strings.ToLower(path.Ext(string(rel)))
}

func withoutExtension(rel RelativePath) RelativePath {
	return RelativePath(strings.TrimSuffix(string(rel), path.Ext(string(rel))))
}

// convertSlides is where PowerPoint decks will get a PDF rendition.  For now there's nothing to
// do.
func (p *PostProcessor) convertSlides(ctx context.Context, rel RelativePath) error {
	p.logger.Debug("Slide conversion not available, keeping original.", "path", rel)
	return nil
}

// extractZip unpacks foo/bar.zip into foo/bar/, unless foo/bar already exists.  The zip itself is
// never touched, whatever happens here.
func (p *PostProcessor) extractZip(ctx context.Context, rel RelativePath) error {
	target := withoutExtension(rel)

	_, err, _ := p.extractions.Do(string(target), func() (any, error) {
		return nil, p.extractInto(ctx, rel, target)
	})

	return err
}

func (p *PostProcessor) extractInto(ctx context.Context, rel RelativePath, target RelativePath) error {
	afs := p.store.Fs()
	dir := p.store.Abs(target)

	// Mkdir rather than MkdirAll: whoever creates the directory owns the extraction.
	if err := afs.Mkdir(dir, dirPerms); err != nil {
		if errors.Is(err, fs.ErrExist) {
			info, statErr := afs.Stat(dir)
			if statErr != nil {
				return fmt.Errorf("localdump: %w: couldn't stat %s: %w", ErrIOFailure, dir, statErr)
			}
			if !info.IsDir() {
				return fmt.Errorf("localdump: %w: can't extract %s, %s is not a directory", ErrWriteConflict, rel, target)
			}
			p.logger.Debug("Archive already extracted, skipping.", "path", rel, "dir", target)
			return nil
		}
		return fmt.Errorf("localdump: %w: couldn't create %s: %w", ErrIOFailure, dir, err)
	}

	var complete bool
	defer func() {
		if !complete {
			// let a later run try again
			afs.RemoveAll(dir) //nolint:errcheck
		}
	}()

	f, err := afs.Open(p.store.Abs(rel))
	if err != nil {
		return fmt.Errorf("localdump: couldn't open archive %s: %w", rel, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("localdump: couldn't stat archive %s: %w", rel, err)
	}

	zr, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return fmt.Errorf("localdump: couldn't read archive %s: %w", rel, err)
	}

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("localdump: extraction of %s interrupted: %w", rel, err)
		}
		if err := extractEntry(afs, dir, entry); err != nil {
			return fmt.Errorf("localdump: couldn't extract %s: %w", rel, err)
		}
	}

	complete = true
	p.logger.Info("Extracted archive.", "path", rel, "dir", target, "entries", len(zr.File))

	return nil
}

func extractEntry(afs afero.Fs, dir string, entry *zip.File) error {
	name := filepath.FromSlash(entry.Name)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, entry.Name)
	}
	dest := filepath.Join(dir, name)

	mode := entry.FileInfo().Mode()
	switch {
	case mode.IsDir():
		return afs.MkdirAll(dest, dirPerms)
	case !mode.IsRegular():
		// symlinks and friends could point anywhere
		return nil
	}

	if err := afs.MkdirAll(filepath.Dir(dest), dirPerms); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("couldn't open entry %q: %w", entry.Name, err)
	}
	defer rc.Close()

	out, err := afs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerms)
	if err != nil {
		return fmt.Errorf("%w: couldn't create %s: %w", ErrIOFailure, dest, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("couldn't extract entry %q: %w", entry.Name, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: couldn't close %s: %w", ErrIOFailure, dest, err)
	}

	return nil
}

// MarkdownPath is where the rendition of an HTML file goes: CS101/page.html ->
// .markdown/CS101/page.html.md.
func MarkdownPath(rel RelativePath) RelativePath {
	return RelativePath(path.Join(MarkdownDir, string(rel)) + ".md")
}

// convertHTML writes a Markdown rendition of an HTML file under MarkdownDir.  An existing
// rendition is left alone.
func (p *PostProcessor) convertHTML(ctx context.Context, rel RelativePath) error {
	mdPath := MarkdownPath(rel)

	if exists, err := p.store.Exists(mdPath); err != nil {
		return err
	} else if exists {
		p.logger.Debug("Markdown rendition exists, skipping.", "path", mdPath)
		return nil
	}

	source, err := afero.ReadFile(p.store.Fs(), p.store.Abs(rel))
	if err != nil {
		return fmt.Errorf("localdump: couldn't read %s: %w", rel, err)
	}

	markdown, err := p.toMarkdown(string(source))
	if err != nil {
		return fmt.Errorf("localdump: failed to convert %s to Markdown: %w", rel, err)
	}

	header := MarkdownHeader{
		Title:  htmlTitle(string(source)),
		Source: path.Base(string(rel)),
	}
	yamlHeader, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("localdump: couldn't marshal header YAML: %w", err)
	}

	markdown = fmt.Sprintf(`---
%s
---
%s
`,
		strings.TrimSpace(string(yamlHeader)),
		markdown)

	if _, err := p.store.Write(ctx, mdPath, strings.NewReader(markdown), int64(len(markdown))); err != nil {
		if errors.Is(err, ErrWriteConflict) {
			return nil
		}
		return fmt.Errorf("localdump: couldn't write %s: %w", mdPath, err)
	}

	p.logger.Info("Converted HTML to Markdown.", "path", rel, "markdown", mdPath)

	return nil
}

// MarkdownHeader is the front matter of a converted page.
type MarkdownHeader struct {
	Title  string `yaml:"title,omitempty"`
	Source string `yaml:"source"`
}

// htmlTitle is the document's <title>, or failing that its first heading.
func htmlTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, selector := range []string{"title", "h1"} {
		if title := strings.TrimSpace(doc.Find(selector).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

func (p *PostProcessor) toMarkdown(html string) (string, error) {
	domain := ""
	scheme := "https"
	if p.opts.LinkBase != nil {
		domain = p.opts.LinkBase.Host
		if p.opts.LinkBase.Scheme != "" {
			scheme = p.opts.LinkBase.Scheme
		}
	}

	// md.NewConverter only takes a hostname, so borrow DefaultGetAbsoluteURL and pin the scheme
	// ourselves.
	opt := &md.Options{
		GetAbsoluteURL: func(selec *goquery.Selection, rawURL string, domain string) string {
			if domain == "" {
				return rawURL
			}

			u, err := url.Parse(rawURL)
			if err != nil {
				// we can't do anything with this url because it is invalid
				return rawURL
			}

			if u.Scheme == "data" {
				// this is a data uri (for example an inline base64 image)
				return rawURL
			}

			if u.Scheme == "" {
				u.Scheme = scheme
			}
			if u.Host == "" {
				u.Host = domain
			}

			return u.String()
		},
	}

	converter := md.NewConverter(domain, true, opt)
	// Github flavoured Markdown knows about tables 👍
	converter.Use(mdplugin.GitHubFlavored())

	return converter.ConvertString(html)
}
