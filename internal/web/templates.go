package web

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/minibb/minibb/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcMap = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
}

var templates = template.Must(
	template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html"))

// Page is the view-model every template receives.
type Page struct {
	Title string
	User  *models.User // viewer, nil when anonymous
	Flash string
	Posts []models.PostView
	Post  *models.Post
	Query string
}

// Render writes the named template with data; template errors become 500s.
func Render(w http.ResponseWriter, name string, data *Page) {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
