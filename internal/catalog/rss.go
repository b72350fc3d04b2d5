package catalog

import (
	"fmt"
	"io"
	"time"

	"jetfeed/internal/model"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

// ItemsFromRSS parses an RSS, Atom or JSON feed into pending items ready for
// the ingestion queue. Entries without a link are skipped. Ids are derived
// from the link so importing the same feed twice yields the same ids.
func ItemsFromRSS(r io.Reader) ([]model.Item, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]model.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Link == "" {
			continue
		}
		item := model.Item{
			ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(entry.Link)).String(),
			Title:     entry.Title,
			URL:       entry.Link,
			Excerpt:   entry.Description,
			Status:    model.StatusPending,
			CreatedAt: time.Now(),
		}
		if entry.PublishedParsed != nil {
			item.CreatedAt = *entry.PublishedParsed
		}
		if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			item.Author = entry.Authors[0].Name
		}
		items = append(items, item)
	}
	return items, nil
}
