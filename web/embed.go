// Package web ships the UI assets inside the binary so a single executable
// serves everything.
package web

import "embed"

// TemplatesFS holds the HTML templates the server renders.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and other files served under /static/.
//go:embed static/*
var StaticFS embed.FS
