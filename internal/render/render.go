package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/Masterminds/sprig"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData is everything the chat page needs for one render.
type PageData struct {
	Title    string
	Turns    []chat.Turn
	Models   []catalog.Model
	Selected string
	Flash    string
	// Busy is set while a reply for this session is still pending.
	Busy     bool
}

// Renderer turns a transcript into the chat page.
type Renderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}

	funcs := sprig.HtmlFuncMap()
	funcs["markdown"] = r.Markdown
	funcs["isUser"] = func(role chat.Role) bool { return role == chat.RoleUser }

	tmpl, err := template.New("page.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Page writes the full chat page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "Chat with AI"
	}
	return r.tmpl.ExecuteTemplate(w, "page.html", data)
}

// Markdown converts assistant output to HTML. Raw HTML in the source is
// dropped by goldmark, so the result is safe to embed.
func (r *Renderer) Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
