// Package gbif talks to the GBIF.org API. The import pipeline uses it to
// resolve dataset titles that are missing from snapshot rows and to describe
// occurrence downloads.
package gbif

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gbif-alert/gbif-alert-go/internal/conf"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
)

// DatasetAPI resolves dataset metadata from the external registry.
type DatasetAPI interface {
	DatasetTitle(ctx context.Context, datasetKey string) (string, error)
}

// DownloadClient requests a fresh occurrence snapshot from the external
// collaborator. Download blocks until the snapshot is locally available and
// returns its path together with the external download identifier.
type DownloadClient interface {
	Download(ctx context.Context, predicate string) (path string, downloadID string, err error)
}

// Client is the HTTP implementation of DatasetAPI. Dataset titles are
// immutable enough that a long cache is safe within one process lifetime.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	log        *slog.Logger
}

// NewClient builds a client against the API base URL from the settings.
func NewClient(settings *conf.Settings) *Client {
	return &Client{
		baseURL: settings.Import.GBIFAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: gocache.New(12*time.Hour, time.Hour),
		log:   logging.ForService("gbif"),
	}
}

type datasetResponse struct {
	Title string `json:"title"`
}

// DatasetTitle returns the registered title of a dataset. Results are cached
// per key so a snapshot referencing the same anonymous dataset thousands of
// times costs one request.
func (c *Client) DatasetTitle(ctx context.Context, datasetKey string) (string, error) {
	if cached, found := c.cache.Get(datasetKey); found {
		return cached.(string), nil
	}

	url := fmt.Sprintf("%s/dataset/%s", c.baseURL, datasetKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.New(err).
			Component("gbif").
			Category(errors.CategoryNetwork).
			Context("dataset_key", datasetKey).
			Build()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.New(fmt.Errorf("fetching dataset %s: %w", datasetKey, err)).
			Component("gbif").
			Category(errors.CategoryNetwork).
			Context("dataset_key", datasetKey).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("dataset lookup for %s returned status %d", datasetKey, resp.StatusCode).
			Component("gbif").
			Category(errors.CategoryNetwork).
			Context("dataset_key", datasetKey).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var dataset datasetResponse
	if err := json.NewDecoder(resp.Body).Decode(&dataset); err != nil {
		return "", errors.New(fmt.Errorf("decoding dataset %s: %w", datasetKey, err)).
			Component("gbif").
			Category(errors.CategoryNetwork).
			Context("dataset_key", datasetKey).
			Build()
	}

	c.cache.Set(datasetKey, dataset.Title, gocache.DefaultExpiration)
	c.log.Debug("resolved dataset title from API",
		"dataset_key", datasetKey, "title", dataset.Title)
	return dataset.Title, nil
}
