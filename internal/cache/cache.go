// Handles memoization of outbound requests
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDelay is the politeness interval applied before every miss
const DefaultDelay = time.Second

var (
	// ErrPersist wraps failures to write the durable cache
	ErrPersist = errors.New("failed to persist cache")
	// ErrInvalidValue is returned when a producer yields something that is not JSON
	ErrInvalidValue = errors.New("producer returned invalid JSON")
)

// Producer performs the real request on a miss
type Producer func() (json.RawMessage, error)

// RequestCache memoizes producers by request key, mirroring every new entry
// to its Persister. Calls are serialized: a miss holds the cache until its
// delay, producer and persist have all completed.
type RequestCache struct {
	mu        sync.Mutex
	store     Store
	persister Persister
	delay     time.Duration
	sleep     func(time.Duration)
	metrics   *Metrics

	// last failed persist, cleared by the next successful one
	persistErr error
}

// Option configures a RequestCache
type Option func(*RequestCache)

// WithSleep replaces time.Sleep for the miss delay
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *RequestCache) { c.sleep = sleep }
}

// WithMetrics reports lookups to m
func WithMetrics(m *Metrics) Option {
	return func(c *RequestCache) { c.metrics = m }
}

// New loads the store from persister and returns a cache around it
func New(persister Persister, delay time.Duration, opts ...Option) *RequestCache {
	c := &RequestCache{
		persister: persister,
		delay:     delay,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.store = persister.Load()
	c.metrics.entries.Set(float64(len(c.store)))
	logrus.Debugf("Loaded %d cache entries from %s", len(c.store), persister.Location())
	return c
}

// FetchOrPopulate returns the value stored under key, or on a miss waits the
// configured delay, calls producer, stores and persists its result.
//
// A failed producer records nothing. A failed persist returns the value
// together with an error wrapping ErrPersist; the entry stays in memory.
func (c *RequestCache) FetchOrPopulate(key string, producer Producer) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.store[key]; ok {
		c.metrics.hit()
		logrus.Infof("Using cache: %s", key)
		return value, nil
	}

	c.metrics.miss()
	logrus.Infof("Fetching: %s", key)
	if c.delay > 0 {
		c.sleep(c.delay)
	}

	value, err := producer()
	if err != nil {
		c.metrics.producerErrors.Inc()
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	if !json.Valid(value) {
		c.metrics.producerErrors.Inc()
		return nil, fmt.Errorf("failed to fetch %s: %w", key, ErrInvalidValue)
	}

	c.store[key] = value
	c.metrics.entries.Set(float64(len(c.store)))

	if err := c.persister.Persist(c.store); err != nil {
		c.metrics.persistErrors.Inc()
		c.persistErr = fmt.Errorf("%w to %s: %w", ErrPersist, c.persister.Location(), err)
		return value, c.persistErr
	}
	c.persistErr = nil
	return value, nil
}

// PersistErr returns the error of the last durable write if it failed. Values
// fetched since then are only held in memory.
func (c *RequestCache) PersistErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistErr
}

// Get returns the stored value for key without populating it
func (c *RequestCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.store[key]
	return value, ok
}

// Len returns the number of entries
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Snapshot returns a copy of the in-memory store
func (c *RequestCache) Snapshot() Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clone()
}

// Location describes where the durable copy lives
func (c *RequestCache) Location() string {
	return c.persister.Location()
}

// FetchText is FetchOrPopulate for plain text payloads such as page bodies
func FetchText(c *RequestCache, key string, producer func() (string, error)) (string, error) {
	return FetchJSON(c, key, producer)
}

// FetchJSON is FetchOrPopulate for payloads that decode into T
func FetchJSON[T any](c *RequestCache, key string, producer func() (T, error)) (T, error) {
	var out T
	raw, err := c.FetchOrPopulate(key, func() (json.RawMessage, error) {
		v, err := producer()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if raw == nil {
		return out, err
	}
	if uerr := json.Unmarshal(raw, &out); uerr != nil {
		return out, fmt.Errorf("failed to decode cached value for %s: %w", key, uerr)
	}
	return out, err
}
