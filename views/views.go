// Package views embeds the HTML templates rendered for invoices, certificates
// and notification emails.
package views

import (
	"embed"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed *.html certificate/*.html emails/*.html
var FS embed.FS

// NewEngine returns a fiber html engine over the embedded templates
func NewEngine() *html.Engine {
	return html.NewFileSystem(http.FS(FS), ".html")
}
