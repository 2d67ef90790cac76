package contentqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bissquit/contentq/internal/domain"
)

// Publisher performs the actual publication of a due item.
type Publisher interface {
	Publish(ctx context.Context, item *domain.QueueItem) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, item *domain.QueueItem) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, item *domain.QueueItem) error {
	return f(ctx, item)
}

// SourcePublisher publishes an item once its content body is present.
// Sources must resolve inside Root. With an empty Root every item is
// publishable.
type SourcePublisher struct {
	Root string
}

// Publish verifies that the item's source is a file under Root.
func (p SourcePublisher) Publish(_ context.Context, item *domain.QueueItem) error {
	if p.Root == "" {
		return nil
	}
	if item.SourcePath == "" {
		return errors.New("content source path is empty")
	}

	if !filepath.IsLocal(item.SourcePath) {
		return fmt.Errorf("content source outside content root: %s", item.SourcePath)
	}
	path := filepath.Join(p.Root, item.SourcePath)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("content source not found: %s", item.SourcePath)
		}
		return fmt.Errorf("stat content source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("content source is a directory: %s", item.SourcePath)
	}
	return nil
}
