package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"simplepos/internal/cache"
	"simplepos/internal/domain"
)

var ErrLoadFailed = errors.New("catalog load failed")

const maxFeedBytes = 16 << 20

type Loader struct {
	client   *http.Client
	url      string
	cache    cache.FeedCache
	cacheTTL time.Duration
	log      zerolog.Logger
}

type LoaderOption func(*Loader)

func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

func WithFeedCache(feedCache cache.FeedCache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		if feedCache != nil {
			l.cache = feedCache
			l.cacheTTL = ttl
		}
	}
}

func WithLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

type forceRefreshKey struct{}

// ForceRefresh marks ctx so that Load fetches the feed instead of serving a
// cached body. The fresh body still refreshes the cache.
func ForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, true)
}

func forcedRefresh(ctx context.Context) bool {
	forced, _ := ctx.Value(forceRefreshKey{}).(bool)
	return forced
}

func NewLoader(url string, timeout time.Duration, opts ...LoaderOption) *Loader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := &Loader{
		client: &http.Client{Timeout: timeout},
		url:    url,
		cache:  cache.NoopFeedCache{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the feed and parses it for the given stock slot. Any failure
// is reported as ErrLoadFailed together with an empty, non-nil catalog.
func (l *Loader) Load(ctx context.Context, slot domain.StockSlot) ([]domain.Product, error) {
	body, err := l.fetch(ctx)
	if err != nil {
		l.log.Error().Err(err).Str("url", l.url).Msg("catalog fetch failed")
		return []domain.Product{}, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	products := Parse(body, slot)
	l.log.Info().Int("products", len(products)).Int("stock_slot", int(slot)).Msg("catalog loaded")
	return products, nil
}

func (l *Loader) fetch(ctx context.Context) (string, error) {
	if !forcedRefresh(ctx) {
		if cached, ok, err := l.cache.Get(ctx, l.url); err == nil && ok {
			return cached, nil
		} else if err != nil {
			l.log.Warn().Err(err).Msg("feed cache read failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "text/csv")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("feed responded %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", err
	}
	body := string(raw)

	if err := l.cache.Set(ctx, l.url, body, l.cacheTTL); err != nil {
		l.log.Warn().Err(err).Msg("feed cache write failed")
	}
	return body, nil
}
