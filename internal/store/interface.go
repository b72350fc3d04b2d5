package store

import (
	"context"
	"errors"

	"jetfeed/internal/model"
)

var (
	ErrNotFound = errors.New("item not found")
	ErrNoLayout = errors.New("feed layout not set")
)

// Store is the catalog backend used by the ingestion worker.
type Store interface {
	Save(ctx context.Context, item *model.Item) error
	Get(ctx context.Context, id string) (*model.Item, error)
	UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error
	PopQueue(ctx context.Context) (string, error)
	PushRecent(ctx context.Context, id string) error
}

// Layout names the item ids that make up the feed.
type Layout struct {
	Highlighted string
	Recommended []string
	Popular     []string
	Recent      []string
}
