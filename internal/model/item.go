package model

import (
	"time"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusPublished  ItemStatus = "published"
	StatusFailed     ItemStatus = "failed"
)

// Item is a single entry of the content catalog.
type Item struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Subtitle     string     `json:"subtitle,omitempty" yaml:"subtitle"`
	URL          string     `json:"url,omitempty" yaml:"url"`
	Author       string     `json:"author,omitempty" yaml:"author"`
	Excerpt      string     `json:"excerpt,omitempty" yaml:"excerpt"`
	Content      string     `json:"content,omitempty" yaml:"content"`
	Status       ItemStatus `json:"status" yaml:"-"`
	CreatedAt    time.Time  `json:"created_at" yaml:"-"`
	ErrorMessage string     `json:"error_message,omitempty" yaml:"-"`
}

// NewItem creates a pending Item for the given URL. Pending items are
// picked up by the ingestion worker.
func NewItem(rawURL string) Item {
	return Item{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}
