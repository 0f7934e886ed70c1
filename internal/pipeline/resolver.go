package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/signal-story-pipeline/internal/observability"
)

// ErrTargetNotFound reports that every fallback spelling of a logical target
// missed the canonical registry. Callers treat it as a per-item skip.
var ErrTargetNotFound = errors.New("target not found")

// Resolver maps logical location/event keys to canonical target ids. Domain
// configuration and the target registry evolve independently; the ordered
// fallback chain absorbs that drift without crashing the run.
type Resolver struct {
	registry    TargetRegistry
	aliasPrefix string
	cache       *lruCache
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewResolver creates a resolver with an in-process LRU over positive
// resolutions; a run touches the same targets repeatedly.
func NewResolver(registry TargetRegistry, aliasPrefix string, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry:    registry,
		aliasPrefix: aliasPrefix,
		cache:       newLRUCache(cacheSize),
		metrics:     metrics,
		logger:      logger,
	}
}

// Resolve tries, in order: the slugged logical id verbatim, then the
// documented alias transform (strip or add the regional prefix).
func (r *Resolver) Resolve(ctx context.Context, logicalID string) (string, error) {
	slug := Slugify(logicalID)
	if slug == "" {
		return "", ErrTargetNotFound
	}

	if canonical, ok := r.cache.get(slug); ok {
		r.metrics.TargetCache.WithLabelValues("hit").Inc()
		return canonical, nil
	}
	r.metrics.TargetCache.WithLabelValues("miss").Inc()

	for _, candidate := range r.candidates(slug) {
		ok, err := r.registry.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", logicalID, err)
		}
		if ok {
			r.cache.put(slug, candidate)
			return candidate, nil
		}
	}

	r.logger.Debug("target resolution failed", "logical_id", logicalID, "slug", slug)
	return "", ErrTargetNotFound
}

func (r *Resolver) candidates(slug string) []string {
	out := []string{slug}
	if r.aliasPrefix == "" {
		return out
	}
	if strings.HasPrefix(slug, r.aliasPrefix) {
		return append(out, strings.TrimPrefix(slug, r.aliasPrefix))
	}
	return append(out, r.aliasPrefix+slug)
}

// Slugify reduces a logical id to the registry's id shape: lowercase, with
// runs of non-alphanumerics collapsed to single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// lruCache is a small thread-safe LRU for resolved target ids.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value string
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
