package web

import "embed"

// TemplatesFS embeds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds CSS and JS served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
