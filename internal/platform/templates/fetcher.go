// Package templates loads the SVG chart templates from their configured
// URLs and keeps them in a cache shared by every export.
package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/domain/chartexport"
	"github.com/odonto/odonto/internal/platform/metrics"
)

const keyPrefix = "odontogram:template:"

// Config holds the template locations and cache policy.
type Config struct {
	URLs     map[chartexport.Sheet]string
	CacheTTL time.Duration
	Timeout  time.Duration
	Retries  int
}

// Fetcher implements chartexport.TemplateSource.
type Fetcher struct {
	http   *resty.Client
	cache  Cache
	cfg    Config
	logger zerolog.Logger
}

func NewFetcher(cfg Config, cache Cache, logger zerolog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "image/svg+xml")
	return &Fetcher{http: client, cache: cache, cfg: cfg, logger: logger}
}

// Fetch returns the cached template of a sheet, loading it on a miss.
func (f *Fetcher) Fetch(ctx context.Context, sheet chartexport.Sheet) ([]byte, error) {
	key := keyPrefix + string(sheet)
	b, err := f.cache.Get(ctx, key)
	if err == nil {
		metrics.TemplateFetches.WithLabelValues(string(sheet), "cache").Inc()
		return b, nil
	}
	if !errors.Is(err, ErrMiss) {
		f.logger.Warn().Err(err).Str("sheet", string(sheet)).Msg("template cache read failed")
	}
	return f.load(ctx, sheet)
}

// Refresh reloads every configured sheet, bypassing the cache. Sheets that
// fail keep whatever the cache already holds.
func (f *Fetcher) Refresh(ctx context.Context) error {
	var errs []error
	for _, s := range chartexport.Sheets {
		if _, ok := f.cfg.URLs[s]; !ok {
			continue
		}
		if _, err := f.load(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fetcher) load(ctx context.Context, sheet chartexport.Sheet) ([]byte, error) {
	url, ok := f.cfg.URLs[sheet]
	if !ok || url == "" {
		metrics.TemplateFetches.WithLabelValues(string(sheet), "error").Inc()
		return nil, fmt.Errorf("no template url configured for sheet %s", sheet)
	}

	resp, err := f.http.R().SetContext(ctx).Get(url)
	if err != nil {
		metrics.TemplateFetches.WithLabelValues(string(sheet), "error").Inc()
		return nil, fmt.Errorf("fetch %s template: %w", sheet, err)
	}
	if resp.IsError() {
		metrics.TemplateFetches.WithLabelValues(string(sheet), "error").Inc()
		return nil, fmt.Errorf("fetch %s template: status %d", sheet, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		metrics.TemplateFetches.WithLabelValues(string(sheet), "error").Inc()
		return nil, fmt.Errorf("fetch %s template: empty body", sheet)
	}
	metrics.TemplateFetches.WithLabelValues(string(sheet), "remote").Inc()

	if err := f.cache.Set(ctx, keyPrefix+string(sheet), body, f.cfg.CacheTTL); err != nil {
		f.logger.Warn().Err(err).Str("sheet", string(sheet)).Msg("template cache write failed")
	}
	return body, nil
}
