package worker

import (
	"context"

	"jetfeed/internal/model"
	"jetfeed/internal/stream"

	"go.uber.org/zap"
)

// FavoritesWriter persists favorites snapshots.
type FavoritesWriter interface {
	SaveFavorites(ctx context.Context, favs model.Favorites) error
}

// MirrorFavorites writes every snapshot received on sub until ctx is done or
// the subscription is closed. The subscription is closed on return.
// Snapshots that arrive while a write is in progress collapse into the
// newest one.
func MirrorFavorites(ctx context.Context, sub *stream.Subscription[model.Favorites], w FavoritesWriter, logger *zap.Logger) {
	defer sub.Close()
	logger.Info("Favorites mirror started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Favorites mirror shutting down")
			return
		case favs, ok := <-sub.C():
			if !ok {
				logger.Info("Favorites stream closed")
				return
			}
			if err := w.SaveFavorites(ctx, favs); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("Failed to persist favorites", zap.Int("total", favs.Len()), zap.Error(err))
				continue
			}
			logger.Debug("Favorites persisted", zap.Int("total", favs.Len()))
		}
	}
}
