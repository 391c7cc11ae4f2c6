// Package yelp searches for businesses near a location.
package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrUnexpectedPayload is returned when a search response has no business list
var ErrUnexpectedPayload = errors.New("unexpected search payload")

// Business is one search result
type Business struct {
	Name    string
	Rating  float64
	Address string
	Phone   string
	URL     string
}

// JSONFetcher returns the JSON payload of a parameterized GET
type JSONFetcher interface {
	GetJSON(ctx context.Context, base string, params map[string]string, header http.Header) (json.RawMessage, error)
}

// Client queries the business search endpoint
type Client struct {
	fetcher  JSONFetcher
	endpoint string
	apiKey   string
	term     string
	radius   int
	limit    int
}

// Options configures a Client
type Options struct {
	Endpoint string
	APIKey   string
	Term     string
	Radius   int
	Limit    int
}

// New returns a client that fetches through fetcher
func New(fetcher JSONFetcher, opts Options) *Client {
	return &Client{
		fetcher:  fetcher,
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		term:     opts.Term,
		radius:   opts.Radius,
		limit:    opts.Limit,
	}
}

// Params returns the search parameters for location
func (c *Client) Params(location string) map[string]string {
	return map[string]string{
		"location": location,
		"term":     c.term,
		"radius":   strconv.Itoa(c.radius),
		"limit":    strconv.Itoa(c.limit),
	}
}

// Nearby returns the businesses matching the configured term around location
func (c *Client) Nearby(ctx context.Context, location string) ([]Business, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	raw, err := c.fetcher.GetJSON(ctx, c.endpoint, c.Params(location), header)
	if err != nil {
		return nil, err
	}
	return ParseBusinesses(raw)
}

// ParseBusinesses extracts the business records of a search payload
func ParseBusinesses(raw []byte) ([]Business, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUnexpectedPayload)
	}
	list := gjson.GetBytes(raw, "businesses")
	if !list.IsArray() {
		if msg := gjson.GetBytes(raw, "error.description"); msg.Exists() {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, msg.String())
		}
		return nil, fmt.Errorf("%w: no businesses", ErrUnexpectedPayload)
	}

	businesses := []Business{}
	list.ForEach(func(_, b gjson.Result) bool {
		businesses = append(businesses, Business{
			Name:    b.Get("name").String(),
			Rating:  b.Get("rating").Float(),
			Address: b.Get("location.display_address.0").String(),
			Phone:   b.Get("display_phone").String(),
			URL:     b.Get("url").String(),
		})
		return true
	})
	return businesses, nil
}
