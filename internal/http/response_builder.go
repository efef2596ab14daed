// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for full-page HTML responses.

package http

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"allowance/internal/log"
)

// PageResponse renders one named template into a complete response.
type PageResponse struct {
	name       string
	statusCode int
	data       any
}

// NewPage creates a builder for the template name with a default 200 status.
func NewPage(name string) *PageResponse {
	return &PageResponse{
		name:       name,
		statusCode: http.StatusOK,
	}
}

func (p *PageResponse) Status(code int) *PageResponse {
	p.statusCode = code
	return p
}

func (p *PageResponse) Data(data any) *PageResponse {
	p.data = data
	return p
}

// Write executes the template into a buffer first, so a template error
// becomes a clean 500 instead of a half-written page.
func (p *PageResponse) Write(w http.ResponseWriter, templates *template.Template) {
	if templates == nil {
		ErrorResponse(http.StatusInternalServerError, "templates not loaded", w)
		return
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, p.name, p.data); err != nil {
		slog.Error("Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", p.name,
			log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "template error", w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(p.statusCode)
	_, _ = w.Write(buf.Bytes())
}

// ErrorResponse writes a plain escaped error body.
func ErrorResponse(statusCode int, message string, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(template.HTMLEscapeString(message)))
}
