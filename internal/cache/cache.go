package cache

import (
	"context"
	"time"

	"saldokonter/backend/internal/domain"
)

// ReferenceData is everything the ledger needs to annotate and project a
// shift: the catalog in matching order and the fee brackets sorted by
// min_amount.
type ReferenceData struct {
	Catalog  domain.Catalog   `json:"catalog"`
	FeeRules []domain.FeeRule `json:"fee_rules"`
}

type CatalogCache interface {
	Get(ctx context.Context) (*ReferenceData, bool, error)
	Set(ctx context.Context, value *ReferenceData, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context) (*ReferenceData, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ *ReferenceData, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context) error {
	return nil
}
