// Package cache is a Redis read-through cache in front of a document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"docdesk/internal/document/models"
	"docdesk/pkg/domain"
)

const documentKeyPrefix = "docdesk:document:"

// Store is the backing document store.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id domain.DocumentID) error
	FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error)
	List(ctx context.Context, q models.Query) ([]*models.Document, error)
}

// CachedStore caches FindByID results. Writes go to the backing store first and
// then invalidate the cached entry. Redis failures degrade to the backing store.
//
// Expiry is never cached: it is derived from the document and the caller's clock.
//
// A fill that raced with an invalidation in this process is removed again, so a
// read that started before an update cannot leave the old row cached.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

type Option func(*CachedStore)

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedStore) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(next Store, client *redis.Client, ttl time.Duration, opts ...Option) *CachedStore {
	c := &CachedStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedStore) Create(ctx context.Context, doc *models.Document) error {
	return c.next.Create(ctx, doc)
}

func (c *CachedStore) Update(ctx context.Context, doc *models.Document) error {
	if err := c.next.Update(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx, doc.ID)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id domain.DocumentID) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) List(ctx context.Context, q models.Query) ([]*models.Document, error) {
	return c.next.List(ctx, q)
}

// FindByID serves from Redis when possible. Concurrent misses for the same id
// share a single backing-store read.
func (c *CachedStore) FindByID(ctx context.Context, id domain.DocumentID) (*models.Document, error) {
	key := documentKeyPrefix + id.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc models.Document
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr == nil {
			return &doc, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached document", "document_id", id.String())
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "document cache read failed", "document_id", id.String(), "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.generation(key)
		doc, err := c.next.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, key, doc, gen)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers may mutate the result; hand each one its own copy.
	shared := v.(*models.Document)
	out := *shared
	if shared.Validity.Fixed != nil {
		f := *shared.Validity.Fixed
		out.Validity.Fixed = &f
	}
	if shared.Validity.Ranged != nil {
		r := *shared.Validity.Ranged
		out.Validity.Ranged = &r
	}
	return &out, nil
}

// fill caches doc, read when key was at generation gen. The generation is
// checked after the write: an invalidation that landed in between either sees
// the write and deletes it, or is seen here and the write is undone.
func (c *CachedStore) fill(ctx context.Context, key string, doc *models.Document, gen uint64) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "document cache write failed", "key", key, "error", err)
		return
	}
	if c.generation(key) != gen {
		c.del(ctx, key)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, id domain.DocumentID) {
	key := documentKeyPrefix + id.String()
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	c.del(ctx, key)
}

func (c *CachedStore) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

func (c *CachedStore) del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "document cache invalidation failed", "key", key, "error", err)
	}
}
