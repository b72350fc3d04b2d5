package catalog

import (
	"context"
	"fmt"
	"time"

	"jetfeed/internal/model"
	"jetfeed/internal/store"
)

// Writer is the part of the store that seeding needs.
type Writer interface {
	Save(ctx context.Context, item *model.Item) error
	SaveLayout(ctx context.Context, l store.Layout) error
}

// Seed writes every fixture item and the feed layout. Existing items with
// the same ids are overwritten.
func Seed(ctx context.Context, w Writer, f *Fixture) (int, error) {
	now := time.Now()
	items := f.Items()
	for i := range items {
		item := items[i]
		item.CreatedAt = now
		if err := w.Save(ctx, &item); err != nil {
			return i, fmt.Errorf("seed item %s: %w", item.ID, err)
		}
	}
	if err := w.SaveLayout(ctx, f.Layout()); err != nil {
		return len(items), fmt.Errorf("seed layout: %w", err)
	}
	return len(items), nil
}
