package web

import "embed"

// TemplatesFS holds the server-rendered pages and HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and scripts served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
