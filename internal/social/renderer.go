package social

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders announcements from per-platform templates.
type Renderer struct {
	templates map[domain.Platform]*template.Template
	baseURL   string
}

// templateData is passed to every template.
type templateData struct {
	Title       string
	Slug        string
	ContentType domain.ContentType
	URL         string
	PublishedAt *time.Time
}

// NewRenderer loads templates for every supported platform.
// baseURL, when set, is joined with the item slug to form a link.
func NewRenderer(baseURL string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"label":      contentLabel,
		"typeEmoji":  typeEmoji,
		"formatTime": formatTime,
		"escapeHTML": html.EscapeString,
	}

	r := &Renderer{
		templates: make(map[domain.Platform]*template.Template),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}

	for _, platform := range []domain.Platform{domain.PlatformMattermost, domain.PlatformTelegram} {
		filename := fmt.Sprintf("templates/%s.tmpl", platform)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(platform)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		r.templates[platform] = tmpl
	}

	return r, nil
}

// Render builds the announcement of item for platform.
func (r *Renderer) Render(platform domain.Platform, item *domain.QueueItem) (Message, error) {
	tmpl, ok := r.templates[platform]
	if !ok {
		return Message{}, fmt.Errorf("template not found: %s", platform)
	}

	data := templateData{
		Title:       item.Title,
		Slug:        item.Slug,
		ContentType: item.ContentType,
		PublishedAt: item.PublishedAt,
	}
	if r.baseURL != "" {
		data.URL = r.baseURL + "/" + item.Slug
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("execute template %s: %w", platform, err)
	}

	return Message{
		Subject: fmt.Sprintf("New %s: %s", contentLabel(item.ContentType), item.Title),
		Body:    strings.TrimSpace(buf.String()),
	}, nil
}

var titleCaser = cases.Title(language.English)

func contentLabel(t domain.ContentType) string {
	if t == "" {
		t = domain.ContentTypeEssay
	}
	return titleCaser.String(string(t))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func typeEmoji(t domain.ContentType) string {
	switch t {
	case domain.ContentTypeGuide:
		return "🧭"
	case domain.ContentTypeTutorial:
		return "🛠"
	case domain.ContentTypeAnnouncement:
		return "📣"
	default:
		return "📝"
	}
}
