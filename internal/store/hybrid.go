package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jetfeed/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

const (
	keyQueue       = "queue:ingest"
	keyHighlighted = "feed:highlighted"
	keyRecommended = "feed:recommended"
	keyPopular     = "feed:popular"
	keyRecent      = "feed:recent"
	keyFavorites   = "favorites"

	recentLimit = 50
	popTimeout  = time.Second
)

func itemKey(id string) string {
	return fmt.Sprintf("item:%s", id)
}

// HybridStore keeps item metadata, feed layout and the ingestion queue in
// Redis and item bodies in Badger.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

var _ Store = (*HybridStore)(nil)

// NewHybridStore initializes databases.
// Pass badgerPath="" to run in "Redis-Only" mode (for CLI tools).
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Silence default logger
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Save writes metadata to Redis and the body to Badger. New pending items
// are pushed onto the ingestion queue.
func (s *HybridStore) Save(ctx context.Context, item *model.Item) error {
	meta := *item
	meta.Content = ""

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, itemKey(item.ID), data, 0)
	if item.Status == model.StatusPending {
		pipe.LPush(ctx, keyQueue, item.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if item.Content != "" {
		if s.db == nil {
			return fmt.Errorf("cannot save content: badgerdb is not initialized")
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(item.ID), []byte(item.Content))
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Get combines data: Metadata from Redis + Content from Badger
func (s *HybridStore) Get(ctx context.Context, id string) (*model.Item, error) {
	val, err := s.rdb.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var item model.Item
	if err := json.Unmarshal(val, &item); err != nil {
		return nil, err
	}

	if s.db != nil {
		err = s.db.View(func(txn *badger.Txn) error {
			entry, err := txn.Get([]byte(id))
			if err != nil {
				return err
			}
			return entry.Value(func(val []byte) error {
				item.Content = string(val)
				return nil
			})
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return nil, err
		}
	}

	return &item, nil
}

// ByID looks up a published item. Pending and failed items are not part of
// the catalog yet.
func (s *HybridStore) ByID(ctx context.Context, id string) (model.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if item.Status != model.StatusPublished {
		return model.Item{}, ErrNotFound
	}
	return *item, nil
}

// UpdateStatus is a helper to just flip the status flag in Redis
func (s *HybridStore) UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error {
	val, err := s.rdb.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	var item model.Item
	if err := json.Unmarshal(val, &item); err != nil {
		return err
	}

	item.Status = status
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, itemKey(id), data, 0).Err()
}

// PopQueue waits for a job in the Redis queue (Blocking). It blocks in
// short rounds so that a cancelled ctx is noticed.
func (s *HybridStore) PopQueue(ctx context.Context) (string, error) {
	for {
		result, err := s.rdb.BRPop(ctx, popTimeout, keyQueue).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err != nil {
			return "", err
		}
		return result[1], nil
	}
}

// PushRecent puts id at the head of the recent section, keeping the newest
// recentLimit entries.
func (s *HybridStore) PushRecent(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.LRem(ctx, keyRecent, 0, id)
	pipe.LPush(ctx, keyRecent, id)
	pipe.LTrim(ctx, keyRecent, 0, recentLimit-1)
	_, err := pipe.Exec(ctx)
	return err
}

// SaveLayout replaces the feed layout.
func (s *HybridStore) SaveLayout(ctx context.Context, l Layout) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyHighlighted, l.Highlighted, 0)
		replaceList(ctx, pipe, keyRecommended, l.Recommended)
		replaceList(ctx, pipe, keyPopular, l.Popular)
		replaceList(ctx, pipe, keyRecent, l.Recent)
		return nil
	})
	return err
}

func replaceList(ctx context.Context, pipe redis.Pipeliner, key string, ids []string) {
	pipe.Del(ctx, key)
	if len(ids) == 0 {
		return
	}
	vals := make([]interface{}, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	pipe.RPush(ctx, key, vals...)
}

// LoadLayout reads the feed layout. When no highlighted item was set, the
// newest recent item takes its place.
func (s *HybridStore) LoadLayout(ctx context.Context) (Layout, error) {
	var (
		highlighted *redis.StringCmd
		recommended *redis.StringSliceCmd
		popular     *redis.StringSliceCmd
		recent      *redis.StringSliceCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		highlighted = pipe.Get(ctx, keyHighlighted)
		recommended = pipe.LRange(ctx, keyRecommended, 0, -1)
		popular = pipe.LRange(ctx, keyPopular, 0, -1)
		recent = pipe.LRange(ctx, keyRecent, 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Layout{}, err
	}

	l := Layout{
		Highlighted: highlighted.Val(),
		Recommended: recommended.Val(),
		Popular:     popular.Val(),
		Recent:      recent.Val(),
	}
	if l.Highlighted == "" {
		if len(l.Recent) == 0 {
			return Layout{}, ErrNoLayout
		}
		l.Highlighted = l.Recent[0]
	}
	return l, nil
}

// Feed resolves the stored layout into items. Ids that no longer resolve to
// a published item are skipped, except the highlighted one which must exist.
func (s *HybridStore) Feed(ctx context.Context) (model.Feed, error) {
	l, err := s.LoadLayout(ctx)
	if err != nil {
		return model.Feed{}, err
	}

	highlighted, err := s.ByID(ctx, l.Highlighted)
	if err != nil {
		return model.Feed{}, fmt.Errorf("highlighted item %q: %w", l.Highlighted, err)
	}

	feed := model.Feed{Highlighted: highlighted}
	if feed.Recommended, err = s.resolve(ctx, l.Recommended); err != nil {
		return model.Feed{}, err
	}
	if feed.Popular, err = s.resolve(ctx, l.Popular); err != nil {
		return model.Feed{}, err
	}
	if feed.Recent, err = s.resolve(ctx, l.Recent); err != nil {
		return model.Feed{}, err
	}
	return feed, nil
}

func (s *HybridStore) resolve(ctx context.Context, ids []string) ([]model.Item, error) {
	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.ByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// SaveFavorites replaces the persisted favorites with the given snapshot.
func (s *HybridStore) SaveFavorites(ctx context.Context, favs model.Favorites) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyFavorites)
		ids := favs.IDs()
		if len(ids) == 0 {
			return nil
		}
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.SAdd(ctx, keyFavorites, members...)
		return nil
	})
	return err
}

// LoadFavorites returns the persisted favorites, empty if none were saved.
func (s *HybridStore) LoadFavorites(ctx context.Context) (model.Favorites, error) {
	ids, err := s.rdb.SMembers(ctx, keyFavorites).Result()
	if err != nil {
		return model.Favorites{}, err
	}
	return model.NewFavorites(ids...), nil
}
