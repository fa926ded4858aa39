package mvc

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"
)

var ErrViewNotFound = errors.New("mvc: view not found")

const (
	layoutFile     = "Shared/_Layout.html"
	layoutTemplate = "layout"
)

// ViewData is what every view template receives.
type ViewData struct {
	Title string
	Model any
}

// ViewEngine holds one template set per view: the shared layout plus the
// view's own "title" and "body" definitions. Views are keyed by their path
// without extension, e.g. "Home/Index" or "Shared/Error".
type ViewEngine struct {
	views map[string]*template.Template
}

func NewViewEngine(root fs.FS) (*ViewEngine, error) {
	funcs := template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}
	layout, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(root, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("mvc: parse layout: %w", err)
	}

	files, err := fs.Glob(root, "*/*.html")
	if err != nil {
		return nil, err
	}

	e := &ViewEngine{views: map[string]*template.Template{}}
	for _, file := range files {
		if strings.HasPrefix(path.Base(file), "_") {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(root, file); err != nil {
			return nil, fmt.Errorf("mvc: parse view %s: %w", file, err)
		}
		e.views[strings.TrimSuffix(file, ".html")] = t
	}
	return e, nil
}

// Lookup finds a view by name, ignoring case.
func (e *ViewEngine) Lookup(name string) (*template.Template, error) {
	if t, ok := e.views[name]; ok {
		return t, nil
	}
	for k, t := range e.views {
		if strings.EqualFold(k, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrViewNotFound, name)
}
