package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

//go:embed templates/*.html.tmpl
var pageFS embed.FS

var pages = template.Must(template.ParseFS(pageFS, "templates/*.html.tmpl"))

// pageData is the context available to all HTML pages.
type pageData struct {
	User  *models.User
	Error string
}

// renderPage writes an HTML page.
func renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("failed to render page", "page", name, "error", err)
	}
}
