package handler

import (
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	titleCaser := cases.Title(language.English)

	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},

		"year": func() int {
			return time.Now().Year()
		},

		"title": func(s string) string {
			return titleCaser.String(s)
		},
		"join": func(items []string, sep string) string {
			return strings.Join(items, sep)
		},
	}
}
