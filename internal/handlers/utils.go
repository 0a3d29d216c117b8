package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/flash"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// Template helper functions
var funcMap = template.FuncMap{
	"FormatDateTime": FormatDateTime,
	"FormatCoord":    FormatCoord,
}

// FormatDateTime formats a time for tables, in UTC.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// FormatCoord prints a coordinate with six decimals (about 10 cm).
func FormatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// Page is the data every page template receives.
type Page struct {
	Title     string
	User      *models.User
	CSRFToken string
	Flash     *flash.Message
	Error     string
	Email     string
	Data      any
}

type errorView struct {
	StatusCode int
	StatusText string
	Message    string
}

// Templates holds one parsed set per page, each combined with the layout.
type Templates struct {
	pages   map[string]*template.Template
	notices *flash.Notices
}

// LoadTemplates parses the embedded page templates. Pending notices are
// popped through notices when a page renders.
func LoadTemplates(notices *flash.Notices) (*Templates, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(sub, "*.html")
	if err != nil {
		return nil, fmt.Errorf("error globbing templates: %w", err)
	}

	t := &Templates{pages: make(map[string]*template.Template), notices: notices}
	for _, name := range files {
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(sub, layoutFile, name)
		if err != nil {
			return nil, fmt.Errorf("error parsing page template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	if len(t.pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return t, nil
}

// Render executes the page into a buffer first so a template error never
// leaves a half-written response.
func (t *Templates) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	tmpl, ok := t.pages[name]
	if !ok {
		logging.Ctx(r.Context()).Error().Str("template", name).Msg("template not found")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if page.User == nil {
		page.User = auth.CurrentUser(r.Context())
	}
	if page.CSRFToken == "" {
		page.CSRFToken = auth.CSRFToken(r.Context())
	}
	if page.Flash == nil && t.notices != nil {
		page.Flash = t.notices.Pop(w, r)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("error executing template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderErrorPage renders error.html with the given status.
func (t *Templates) RenderErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	t.Render(w, r, status, "error.html", Page{
		Title: fmt.Sprintf("Error %d", status),
		Data: errorView{
			StatusCode: status,
			StatusText: http.StatusText(status),
			Message:    message,
		},
	})
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
