// Package pagecache keeps provider pages for windows old enough that the
// county recorder will not add to them, so re-running a backfill does not
// re-query paid provider APIs.
package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"deedwatch/internal/fetcher"
)

// Cache is a pebble-backed page store.
type Cache struct {
	db *pebble.DB
}

// Open opens or creates the cache at dir.
func Open(dir string) (*Cache, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the cache.
func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) get(key []byte) (fetcher.Page, bool, error) {
	v, closer, err := c.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return fetcher.Page{}, false, nil
	}
	if err != nil {
		return fetcher.Page{}, false, err
	}
	defer closer.Close()

	var page fetcher.Page
	if err := json.Unmarshal(v, &page); err != nil {
		return fetcher.Page{}, false, fmt.Errorf("decode cached page: %w", err)
	}
	return page, true, nil
}

func (c *Cache) put(key []byte, page fetcher.Page) error {
	b, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.db.Set(key, b, pebble.Sync)
}

// Len counts cached pages.
func (c *Cache) Len() (int, error) {
	it, err := c.db.NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// Provider decorates a fetcher.Provider with the cache.
type Provider struct {
	next        fetcher.Provider
	cache       *Cache
	settleAfter time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// Wrap caches pages of next whose query ended at least settleAfter ago.
func Wrap(next fetcher.Provider, cache *Cache, settleAfter time.Duration, logger zerolog.Logger) *Provider {
	return &Provider{
		next:        next,
		cache:       cache,
		settleAfter: settleAfter,
		now:         time.Now,
		logger:      logger.With().Str("component", "pagecache").Logger(),
	}
}

// Name reports the wrapped provider's name.
func (p *Provider) Name() string { return p.next.Name() }

// FetchPage serves settled pages from the cache and stores fresh ones.
// Cache failures fall through to the provider.
func (p *Provider) FetchPage(ctx context.Context, q fetcher.Query, page int) (fetcher.Page, error) {
	if !p.settled(q) {
		return p.next.FetchPage(ctx, q, page)
	}

	key := pageKey(p.next.Name(), q, page)
	cached, ok, err := p.cache.get(key)
	if err != nil {
		p.logger.Warn().Err(err).Int("page", page).Msg("page cache read failed")
	}
	if ok {
		return cached, nil
	}

	fresh, err := p.next.FetchPage(ctx, q, page)
	if err != nil {
		return fetcher.Page{}, err
	}
	if err := p.cache.put(key, fresh); err != nil {
		p.logger.Warn().Err(err).Int("page", page).Msg("page cache write failed")
	}
	return fresh, nil
}

func (p *Provider) settled(q fetcher.Query) bool {
	return p.now().Sub(q.To) >= p.settleAfter
}

func pageKey(provider string, q fetcher.Query, page int) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s|%s|%06d",
		provider,
		strings.ToLower(q.County),
		strings.ToUpper(q.State),
		q.From.Format(fetcher.DateLayout),
		q.To.Format(fetcher.DateLayout),
		strings.Join(q.DocTypes, ","),
		page,
	))
}

var _ fetcher.Provider = (*Provider)(nil)
