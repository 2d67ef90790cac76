package social

import (
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer("https://blog.example.com/")
	require.NoError(t, err)

	assert.Len(t, r.templates, 2)
	assert.Equal(t, "https://blog.example.com", r.baseURL)
}

func TestRenderer_Render_Mattermost(t *testing.T) {
	r, err := NewRenderer("https://blog.example.com")
	require.NoError(t, err)

	published := time.Date(2030, 3, 4, 14, 0, 0, 0, time.UTC)
	item := &domain.QueueItem{
		Slug:        "go-tips",
		Title:       "Go Tips",
		ContentType: domain.ContentTypeGuide,
		PublishedAt: &published,
	}

	msg, err := r.Render(domain.PlatformMattermost, item)
	require.NoError(t, err)

	assert.Equal(t, "New Guide: Go Tips", msg.Subject)
	assert.Contains(t, msg.Body, "**New Guide: Go Tips**")
	assert.Contains(t, msg.Body, "[Read it here](https://blog.example.com/go-tips)")
	assert.Contains(t, msg.Body, "Published Mar 4, 2030 14:00 UTC")
}

func TestRenderer_Render_TelegramEscapesHTML(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	item := &domain.QueueItem{
		Slug:  "tags",
		Title: "Use <b> & <i>",
	}

	msg, err := r.Render(domain.PlatformTelegram, item)
	require.NoError(t, err)

	assert.Contains(t, msg.Body, "<b>New Essay: Use &lt;b&gt; &amp; &lt;i&gt;</b>")
	assert.NotContains(t, msg.Body, "Read it here")
	assert.NotContains(t, msg.Body, "Published")
}

func TestRenderer_Render_UnknownPlatform(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	_, err = r.Render("bluesky", &domain.QueueItem{Slug: "x", Title: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestTypeEmoji(t *testing.T) {
	tests := []struct {
		contentType domain.ContentType
		want        string
	}{
		{domain.ContentTypeEssay, "📝"},
		{domain.ContentTypeGuide, "🧭"},
		{domain.ContentTypeTutorial, "🛠"},
		{domain.ContentTypeAnnouncement, "📣"},
		{"", "📝"},
	}

	for _, tt := range tests {
		t.Run(string(tt.contentType), func(t *testing.T) {
			assert.Equal(t, tt.want, typeEmoji(tt.contentType))
		})
	}
}
