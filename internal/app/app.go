// Package app wires the request cache, the library scraper and the business
// search client from a configuration.
package app

import (
	"fmt"
	"io"
	"net/http"

	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/cache/httpcache"
	"github.com/libdine/libdine/internal/config"
	"github.com/libdine/libdine/internal/library"
	"github.com/libdine/libdine/internal/yelp"
)

// App holds the components shared by every command
type App struct {
	Config      *config.Config
	Cache       *cache.RequestCache
	HTTP        *httpcache.HTTPCache
	Libraries   *library.Scraper
	Restaurants *yelp.Client

	persister cache.Persister
}

// NewPersister opens the storage backend selected by cfg
func NewPersister(cfg *config.Config) (cache.Persister, error) {
	switch cfg.Cache.Backend {
	case "json":
		return cache.NewDisk(cfg.Cache.File), nil
	case "sqlite":
		db, err := cache.NewSQLite(cfg.Cache.File)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// New builds an App. opts are passed to the request cache.
func New(cfg *config.Config, client *http.Client, opts ...cache.Option) (*App, error) {
	delay, err := cfg.GetCacheDelay()
	if err != nil {
		return nil, err
	}

	persister, err := NewPersister(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	c := cache.New(persister, delay, opts...)

	h := httpcache.New(c, client)
	return &App{
		Config:    cfg,
		Cache:     c,
		HTTP:      h,
		persister: persister,
		Libraries: library.NewScraper(h, cfg.Libraries.BaseURL, cfg.Libraries.DirectoryPath, cfg.Libraries.StripAddress),
		Restaurants: yelp.New(h, yelp.Options{
			Endpoint: cfg.Yelp.Endpoint,
			APIKey:   cfg.Yelp.APIKey,
			Term:     cfg.Yelp.Term,
			Radius:   cfg.Yelp.Radius,
			Limit:    cfg.Yelp.Limit,
		}),
	}, nil
}

// Close releases the storage backend
func (a *App) Close() error {
	if closer, ok := a.persister.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
