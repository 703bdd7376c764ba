package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-extras/go-kit/must"

	"blogicum/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer turns a page name plus named values into a response.
type Renderer interface {
	Render(c *gin.Context, page string, data gin.H)
	NotFound(c *gin.Context)
}

var functions = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
	"truncate": models.Truncate,
}

// Templates parses the embedded page templates.
func Templates() *template.Template {
	sub := must.Must(fs.Sub(templatesFS, "templates"))
	return template.Must(template.New("").Funcs(functions).ParseFS(sub, "*.html"))
}

// HTMLRenderer renders pages through the engine's HTML templates.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(c *gin.Context, page string, data gin.H) {
	c.HTML(http.StatusOK, page, data)
}

func (HTMLRenderer) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", gin.H{"path": c.Request.URL.Path})
}

// JSONRenderer ignores the page name and writes the values as JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(c *gin.Context, _ string, data gin.H) {
	c.JSON(http.StatusOK, data)
}

func (JSONRenderer) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
