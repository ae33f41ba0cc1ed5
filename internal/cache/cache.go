package cache

import (
	"context"
	"time"
)

// FeedCache holds raw catalog feed bodies keyed by source URL so several
// sessions reloading within the TTL share one upstream fetch.
type FeedCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, body string, ttl time.Duration) error
}

type NoopFeedCache struct{}

func (NoopFeedCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopFeedCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
