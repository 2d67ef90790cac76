package contentqueue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePublisher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "essay.md"), []byte("# Essay"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "drafts"), 0o750))

	tests := []struct {
		name      string
		publisher SourcePublisher
		source    string
		wantErr   string
	}{
		{"no root accepts everything", SourcePublisher{}, "", ""},
		{"relative path", SourcePublisher{Root: root}, "essay.md", ""},
		{"nested relative path", SourcePublisher{Root: root}, "drafts/../essay.md", ""},
		{"absolute path", SourcePublisher{Root: root}, filepath.Join(root, "essay.md"),
			"content source outside content root: " + filepath.Join(root, "essay.md")},
		{"parent escape", SourcePublisher{Root: filepath.Join(root, "drafts")}, "../essay.md",
			"content source outside content root: ../essay.md"},
		{"missing path", SourcePublisher{Root: root}, "", "content source path is empty"},
		{"missing file", SourcePublisher{Root: root}, "missing.md", "content source not found: missing.md"},
		{"directory", SourcePublisher{Root: root}, "drafts", "content source is a directory: drafts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.publisher.Publish(context.Background(), &domain.QueueItem{SourcePath: tt.source})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestMultiPublisher(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{err: errors.New("second down")}
	third := &recordingPublisher{}

	item := &domain.QueueItem{ID: "1", Slug: "hello", Status: domain.QueueStatusScheduled}
	event := NewEvent(EventQueued, item, time.Now())

	err := MultiPublisher{first, second, third}.PublishEvent(context.Background(), event)

	assert.EqualError(t, err, "second down")
	assert.Len(t, first.events, 1)
	assert.Len(t, third.events, 1)
	assert.Equal(t, "hello", third.events[0].Slug)
}
