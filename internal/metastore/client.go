// Package metastore lists datasets from the CMS provider-data metastore.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
)

// item is the subset of a DCAT dataset entry the job reads
type item struct {
	Identifier   string         `json:"identifier"`
	Title        string         `json:"title"`
	Theme        []string       `json:"theme"`
	Modified     string         `json:"modified"`
	Distribution []distribution `json:"distribution"`
}

type distribution struct {
	MediaType   string `json:"mediaType"`
	DownloadURL string `json:"downloadURL"`
}

// Listing is the theme-filtered result of one metastore query
type Listing struct {
	Descriptors []domain.DatasetDescriptor
	Total       int // items returned by the metastore
	Skipped     int // themed items dropped (no CSV, bad date, duplicate)
}

// Client queries the metastore through a ports.HTTPClient
type Client struct {
	http      ports.HTTPClient
	url       string
	theme     string
	mediaType string
	logger    ports.Logger
	metrics   ports.Metrics
}

func NewClient(http ports.HTTPClient, url, theme, mediaType string, logger ports.Logger, metrics ports.Metrics) *Client {
	return &Client{
		http:      http,
		url:       url,
		theme:     theme,
		mediaType: mediaType,
		logger:    logger,
		metrics:   metrics,
	}
}

// List fetches the catalog and returns the datasets tagged with the
// configured theme that offer a distribution of the configured media type.
// Transport failures are domain.ErrNetwork, undecodable bodies domain.ErrFormat.
func (c *Client) List(ctx context.Context) (*Listing, error) {
	start := time.Now()

	body, _, err := c.http.Download(ctx, c.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		c.metrics.IncrementCounter("metastore.errors", map[string]string{"kind": string(domain.KindNetwork)})
		return nil, domain.NetworkError("list metastore", "", err)
	}
	defer body.Close()

	var items []item
	if err := json.NewDecoder(body).Decode(&items); err != nil {
		if ctx.Err() != nil {
			return nil, domain.NetworkError("list metastore", "", ctx.Err())
		}
		c.metrics.IncrementCounter("metastore.errors", map[string]string{"kind": string(domain.KindFormat)})
		return nil, domain.FormatError("decode metastore", "", err)
	}

	listing := &Listing{Total: len(items)}
	seen := make(map[string]bool)

	for _, it := range items {
		if !hasTheme(it.Theme, c.theme) {
			continue
		}

		desc, err := c.describe(it)
		if err != nil {
			listing.Skipped++
			c.logger.Warn("Skipping dataset", "dataset_id", it.Identifier, "reason", err.Error())
			continue
		}
		if seen[desc.Identifier] {
			listing.Skipped++
			c.logger.Warn("Skipping duplicate dataset", "dataset_id", desc.Identifier)
			continue
		}
		seen[desc.Identifier] = true

		listing.Descriptors = append(listing.Descriptors, desc)
	}

	c.logger.Info("Metastore listed",
		"total", listing.Total,
		"matched", len(listing.Descriptors),
		"skipped", listing.Skipped,
		"theme", c.theme,
		"duration_ms", time.Since(start).Milliseconds())
	c.metrics.RecordGauge("metastore.datasets", float64(len(listing.Descriptors)), nil)
	c.metrics.RecordHistogram("metastore.duration_seconds", time.Since(start).Seconds(), nil)

	return listing, nil
}

func (c *Client) describe(it item) (domain.DatasetDescriptor, error) {
	id := strings.TrimSpace(it.Identifier)
	if id == "" {
		return domain.DatasetDescriptor{}, errors.New("missing identifier")
	}

	var url string
	for _, d := range it.Distribution {
		if strings.EqualFold(strings.TrimSpace(d.MediaType), c.mediaType) && d.DownloadURL != "" {
			url = d.DownloadURL
			break
		}
	}
	if url == "" {
		return domain.DatasetDescriptor{}, fmt.Errorf("no %s distribution", c.mediaType)
	}

	modified, err := ParseModified(it.Modified)
	if err != nil {
		return domain.DatasetDescriptor{}, err
	}

	return domain.DatasetDescriptor{
		Identifier:  id,
		Title:       it.Title,
		DownloadURL: url,
		ModifiedAt:  modified,
	}, nil
}

// ParseModified accepts a calendar date (midnight UTC) or an RFC 3339 timestamp.
// Timestamps are truncated to microseconds, the precision the Postgres run
// store keeps.
func ParseModified(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Truncate(time.Microsecond), nil
	}
	return time.Time{}, fmt.Errorf("unparsable modified date %q", s)
}

func hasTheme(themes []string, want string) bool {
	for _, t := range themes {
		if strings.TrimSpace(t) == want {
			return true
		}
	}
	return false
}
