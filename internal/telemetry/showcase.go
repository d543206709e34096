package telemetry

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ShowcaseCache maps beatmap ids to their mappool slot ("NM1", "HD2", ...).
type ShowcaseCache struct {
	client *Client
	cache  *lru.Cache[int, ShowcaseMap]
	log    *zap.Logger
}

func NewShowcaseCache(client *Client, size int, log *zap.Logger) (*ShowcaseCache, error) {
	cache, err := lru.New[int, ShowcaseMap](size)
	if err != nil {
		return nil, fmt.Errorf("showcase cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ShowcaseCache{client: client, cache: cache, log: log.Named("showcase")}, nil
}

// Refresh replaces the cache contents with the current showcase list.
func (s *ShowcaseCache) Refresh(ctx context.Context) (int, error) {
	sc, err := s.client.Showcase(ctx)
	if err != nil {
		return 0, err
	}
	s.cache.Purge()
	for _, m := range sc.Maps {
		if m.ID > 0 {
			s.cache.Add(m.ID, m)
		}
	}
	s.log.Debug("showcase refreshed", zap.Int("maps", len(sc.Maps)))
	return s.cache.Len(), nil
}

// Slot looks a beatmap up, refreshing once on a miss.
func (s *ShowcaseCache) Slot(ctx context.Context, beatmapID int) (ShowcaseMap, bool, error) {
	if m, ok := s.cache.Get(beatmapID); ok {
		return m, true, nil
	}
	if _, err := s.Refresh(ctx); err != nil {
		return ShowcaseMap{}, false, err
	}
	m, ok := s.cache.Get(beatmapID)
	return m, ok, nil
}
