// Package render produces the per-user dtool configuration and readme
// template artifacts from text templates. Built-in templates are
// embedded; both can be overridden with external files whose changes
// are picked up at runtime.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// Context carries everything the artifact templates may reference.
type Context struct {
	Username string
	FullName string
	Email    string
	ORCID    string

	AccessKey string
	SecretKey string

	Bucket        string
	S3Endpoint    string
	DatasetPrefix string

	LookupServerURL   string
	TokenGeneratorURL string
}

// Config holds optional external template paths. Empty paths select
// the embedded defaults.
type Config struct {
	ConfigTemplate string
	ReadmeTemplate string
}

// Renderer renders the two artifacts. Parsed templates are cached;
// a file watcher invalidates the cache when an external template
// changes on disk.
type Renderer struct {
	cfg     Config
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	configTmpl *template.Template
	readmeTmpl *template.Template
}

// New creates a renderer and starts watching any external template
// files for changes. Close releases the watcher.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{cfg: cfg}

	paths := make([]string, 0, 2)
	if cfg.ConfigTemplate != "" {
		paths = append(paths, cfg.ConfigTemplate)
	}
	if cfg.ReadmeTemplate != "" {
		paths = append(paths, cfg.ReadmeTemplate)
	}
	if len(paths) == 0 {
		return r, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create template watcher: %w", err)
	}
	r.watcher = watcher

	// Watch the containing directories; editors commonly replace the
	// file rather than writing it in place.
	dirs := map[string]struct{}{}
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch template directory %s: %w", dir, err)
		}
	}

	go r.watch(paths)
	return r, nil
}

// Close stops the template watcher.
func (r *Renderer) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func (r *Renderer) watch(paths []string) {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			for _, p := range paths {
				if filepath.Clean(event.Name) != filepath.Clean(p) {
					continue
				}
				logger.Debug("template changed, invalidating cache", "path", p, "op", event.Op.String())
				r.mu.Lock()
				if p == r.cfg.ConfigTemplate {
					r.configTmpl = nil
				}
				if p == r.cfg.ReadmeTemplate {
					r.readmeTmpl = nil
				}
				r.mu.Unlock()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("template watcher error", "error", err)
		}
	}
}

// Config renders the dtool.json artifact.
func (r *Renderer) Config(ctx Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.configTmpl == nil {
		tmpl, err := loadTemplate(r.cfg.ConfigTemplate, "templates/dtool.json.tmpl")
		if err != nil {
			return nil, err
		}
		r.configTmpl = tmpl
	}
	return execute(r.configTmpl, ctx)
}

// Readme renders the dtool_readme.yml artifact.
func (r *Renderer) Readme(ctx Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readmeTmpl == nil {
		tmpl, err := loadTemplate(r.cfg.ReadmeTemplate, "templates/dtool_readme.yml.tmpl")
		if err != nil {
			return nil, err
		}
		r.readmeTmpl = tmpl
	}
	return execute(r.readmeTmpl, ctx)
}

// loadTemplate parses the external template at path, or the embedded
// template named by fallback when path is empty.
func loadTemplate(path, fallback string) (*template.Template, error) {
	if path == "" {
		tmpl, err := template.ParseFS(builtin, fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded template %s: %w", fallback, err)
		}
		return tmpl, nil
	}

	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}
