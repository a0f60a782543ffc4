package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/common"
)

// EmptyMessage is shown when a category filter matches nothing.
const EmptyMessage = "Ei tuotteita valitulla suodatuksella."

// ErrProductNotFound is returned when a product id does not exist.
var ErrProductNotFound = common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)

// Service serves the static catalog, caching filtered listings when a cache is configured.
type Service struct {
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) *Service {
	return &Service{cache: cfg.Cache, logger: cfg.Logger}
}

// NormalizeCategory lowercases category and maps blank input to CategoryAll.
func NormalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return CategoryAll
	}
	return category
}

// List returns the products in category, or every product for CategoryAll.
// Unknown categories yield an empty list.
func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	category = NormalizeCategory(category)

	cached, ok, err := s.cache.Listing(ctx, category)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("category", category).Msg("catalog cache read failed")
	case ok:
		return cached, nil
	}

	out := filter(category)
	if err := s.cache.StoreListing(ctx, category, out); err != nil {
		s.logger.Warn().Err(err).Str("category", category).Msg("catalog cache write failed")
	}
	return out, nil
}

// Get returns the product with the given id.
func (s *Service) Get(_ context.Context, id string) (Product, error) {
	if p, ok := lookup(strings.TrimSpace(id)); ok {
		return p, nil
	}
	return Product{}, ErrProductNotFound
}

// Categories lists the distinct categories in catalog order.
func (s *Service) Categories() []Category {
	index := map[string]int{}
	var out []Category
	for _, p := range products {
		if i, ok := index[p.Category]; ok {
			out[i].Count++
			continue
		}
		index[p.Category] = len(out)
		out = append(out, Category{Slug: p.Category, Label: p.CategoryLabel, Count: 1})
	}
	return out
}

// Select picks the product to highlight after filtering: the active product
// when it survives the filter, otherwise the first match, otherwise the
// first product overall.
func (s *Service) Select(category, activeID string) (Product, bool) {
	filtered := filter(NormalizeCategory(category))
	for _, p := range filtered {
		if p.ID == activeID {
			return p, true
		}
	}
	if len(filtered) > 0 {
		return filtered[0], true
	}
	if len(products) > 0 {
		return products[0], true
	}
	return Product{}, false
}

func filter(category string) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category == CategoryAll || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func lookup(id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
