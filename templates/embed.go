package templates

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed *.html
var FS embed.FS

// LoadTemplates loads all templates from the embedded filesystem
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"lower": strings.ToLower,
	}).ParseFS(FS, "*.html")
}
