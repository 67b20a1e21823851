package httpapi

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed static/*
var embeddedStatic embed.FS

//go:embed templates/webrtc.html
var embeddedTemplates embed.FS

var webrtcTemplate = template.Must(template.ParseFS(embeddedTemplates, "templates/webrtc.html"))

func newStaticHandler() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}
