package core

// load.go reads every data source once at startup. Any error here is fatal:
// the service refuses to start with a catalog missing columns, an
// unreadable price matrix or a missing template.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/config"
	"github.com/JonMunkholm/m2o/internal/export"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/pricing"
	"github.com/JonMunkholm/m2o/internal/sheet"
	"github.com/JonMunkholm/m2o/internal/store"
)

// ErrNoDatabase is returned when the catalog source is postgres but no
// database connection was provided.
var ErrNoDatabase = errors.New("catalog source is postgres but no database is configured")

// Data is everything loaded at startup. It is never mutated afterwards.
type Data struct {
	Catalog     *catalog.Catalog
	Prices      *pricing.Index
	Partitioner *market.Partitioner
	Template    []string
}

// Load reads the catalog, the price matrices of every configured segment
// and the template. q is only used when the catalog comes from PostgreSQL.
func Load(ctx context.Context, cfg config.DataConfig, q store.Querier) (*Data, error) {
	start := time.Now()

	catSheet, err := loadCatalogSheet(ctx, cfg, q)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Parse(catSheet)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	partitioner, err := market.NewPartitioner(market.DefaultRules, cfg.SharedMarketTags...)
	if err != nil {
		return nil, fmt.Errorf("market rules: %w", err)
	}

	prices := pricing.NewIndex()
	paths := map[market.Segment]string{
		market.EU:   cfg.EUPricePath,
		market.UKIE: cfg.UKIEPricePath,
	}
	for _, seg := range market.Segments {
		path := paths[seg]
		if path == "" {
			slog.Warn("no price matrix configured, prices unavailable", "segment", seg.String())
			continue
		}
		if err := loadPrices(prices, seg, path, cfg); err != nil {
			return nil, err
		}
	}

	template, err := LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}

	slog.Info("data loaded",
		"catalog_rows", cat.Len(),
		"template_columns", len(template),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Data{
		Catalog:     cat,
		Prices:      prices,
		Partitioner: partitioner,
		Template:    template,
	}, nil
}

func loadCatalogSheet(ctx context.Context, cfg config.DataConfig, q store.Querier) (*sheet.Sheet, error) {
	if cfg.CatalogSource == config.SourcePostgres {
		if q == nil {
			return nil, ErrNoDatabase
		}
		s, err := store.LoadCatalog(ctx, q, cfg.CatalogTable)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return s, nil
	}

	s, err := sheet.Open(cfg.CatalogPath, cfg.CatalogSheet)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return s, nil
}

func loadPrices(ix *pricing.Index, seg market.Segment, path string, cfg config.DataConfig) error {
	sheets := map[pricing.Kind]string{
		pricing.Wholesale: cfg.WholesaleSheet,
		pricing.Retail:    cfg.RetailSheet,
	}
	for _, kind := range pricing.Kinds {
		t, err := pricing.Load(kind, path, sheets[kind])
		if err != nil {
			return fmt.Errorf("%s: %w", seg, err)
		}
		ix.Add(seg, t)
		slog.Info("price matrix loaded",
			"segment", seg.String(),
			"kind", kind.String(),
			"articles", t.Len(),
			"currencies", t.Currencies,
		)
	}
	return nil
}

// LoadTemplate reads the template header row and appends the price
// placeholders when the template lacks them.
func LoadTemplate(path string) ([]string, error) {
	headers, err := sheet.ReadHeaders(path)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("load template %s: %w", path, sheet.ErrNoHeader)
	}
	return export.EnsurePlaceholders(headers), nil
}
