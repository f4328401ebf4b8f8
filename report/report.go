// Package report assembles analysis results into a standalone HTML
// document: markdown prose, SVG figures and tabular summaries, each as
// an addressable section.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrNoSection indicates a lookup of an unknown section ID.
var ErrNoSection = errors.New("report: no such section")

// Section is one addressable block of the report.
type Section struct {
	// ID is a stable random identifier, usable as an anchor and as a
	// REST resource name.
	ID string `json:"id"`
	// Title shows in the table of contents.
	Title string `json:"title"`
	// Tags group sections for filtering.
	Tags []string `json:"tags,omitempty"`
	// Created is the time the section was added.
	Created time.Time `json:"created"`

	html template.HTML
}

// HTML returns the rendered body of the section.
func (s *Section) HTML() string {
	return string(s.html)
}

// Report is an ordered collection of sections.
type Report struct {
	// Title heads the rendered document.
	Title string

	sections []*Section
	markdown goldmark.Markdown
}

// New creates an empty report.
func New(title string) *Report {
	return &Report{
		Title: title,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

func (r *Report) add(title string, body template.HTML, tags []string) *Section {
	s := &Section{
		ID:      uuid.NewString(),
		Title:   title,
		Tags:    append([]string(nil), tags...),
		Created: time.Now(),
		html:    body,
	}
	r.sections = append(r.sections, s)
	return s
}

// AddMarkdown renders markdown into a new section and returns it.
func (r *Report) AddMarkdown(title, md string, tags ...string) (*Section, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("report: markdown: %w", err)
	}
	return r.add(title, template.HTML(buf.String()), tags), nil
}

// AddHTML inserts pre-rendered HTML as a new section. The caller is
// responsible for its safety.
func (r *Report) AddHTML(title, body string, tags ...string) *Section {
	return r.add(title, template.HTML(body), tags)
}

// AddTable renders a header and rows as a new table section.
func (r *Report) AddTable(title string, header []string, rows [][]string, tags ...string) *Section {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, h := range header {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return r.add(title, template.HTML(b.String()), tags)
}

// Sections returns the sections in insertion order.
func (r *Report) Sections() []*Section {
	return append([]*Section(nil), r.sections...)
}

// Section returns the section with the given ID.
func (r *Report) Section(id string) (*Section, error) {
	for _, s := range r.sections {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSection, id)
}

// Remove deletes the section with the given ID.
func (r *Report) Remove(id string) error {
	for i, s := range r.sections {
		if s.ID == id {
			r.sections = append(r.sections[:i], r.sections[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoSection, id)
}

// Tags returns the distinct tags used across sections, sorted.
func (r *Report) Tags() []string {
	seen := map[string]bool{}
	for _, s := range r.sections {
		for _, tag := range s.Tags {
			seen[tag] = true
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; display: flex; }
nav { width: 16em; padding: 1em; background: #f4f4f4; height: 100vh;
      position: sticky; top: 0; overflow-y: auto; }
nav a { display: block; margin: 0.3em 0; color: #246; text-decoration: none; }
main { padding: 1em 2em; max-width: 60em; }
section { margin-bottom: 2em; border-bottom: 1px solid #ddd; }
table { border-collapse: collapse; }
td, th { border: 1px solid #bbb; padding: 0.3em 0.6em; }
.tags { color: #888; font-size: 0.8em; }
</style>
</head>
<body>
<nav>
<h2>{{.Title}}</h2>
{{range .Sections}}<a href="#{{.ID}}">{{.Title}}</a>
{{end}}</nav>
<main>
{{range .Sections}}<section id="{{.ID}}">
<h2>{{.Title}}</h2>
{{if .Tags}}<p class="tags">{{range .Tags}}{{.}} {{end}}</p>{{end}}
{{.Body}}
</section>
{{end}}</main>
</body>
</html>
`))

type pageSection struct {
	ID    string
	Title string
	Tags  []string
	Body  template.HTML
}

// Render writes the full standalone HTML document.
func (r *Report) Render(w io.Writer) error {
	page := struct {
		Title    string
		Sections []pageSection
	}{Title: r.Title}
	for _, s := range r.sections {
		page.Sections = append(page.Sections, pageSection{
			ID: s.ID, Title: s.Title, Tags: s.Tags, Body: s.html,
		})
	}
	return pageTemplate.Execute(w, page)
}

// Save renders the report to a file.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
