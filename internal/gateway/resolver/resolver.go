package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/vineeth-0509/open-llm/internal/shared/database"
	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

// ErrUnknownModel means the model slug is not in the catalog at all: a
// caller input error.
var ErrUnknownModel = errors.New("unknown model")

// ErrModelNotFound means the model exists but has no servable offering: an
// operational gap. Requests fail closed.
var ErrModelNotFound = errors.New("no provider offering for model")

// Catalog is the read-only store the resolver consumes.
type Catalog interface {
	GetModelBySlug(ctx context.Context, slug string) (*models.Model, error)
	ListOfferings(ctx context.Context, modelID int64) ([]models.ProviderOffering, error)
}

// OfferingCache is an optional short-TTL cache of the offering set per
// model. Cache failures are ignored; the catalog is authoritative.
type OfferingCache interface {
	Get(ctx context.Context, modelID int64) ([]models.ProviderOffering, error)
	Set(ctx context.Context, modelID int64, offerings []models.ProviderOffering) error
}

// Resolution is the outcome of resolving one request: the offering that will
// serve it for the request's whole lifetime, and the vendor-side model name.
type Resolution struct {
	Model         models.Model
	Offering      models.ProviderOffering
	UpstreamModel string
}

// Resolver maps a canonical model slug to exactly one provider offering.
type Resolver struct {
	catalog Catalog
	cache   OfferingCache
}

// New creates a Resolver. cache may be nil.
func New(catalog Catalog, cache OfferingCache) *Resolver {
	return &Resolver{catalog: catalog, cache: cache}
}

// Resolve looks up all offerings for the slug and picks one uniformly at
// random. Random selection is the whole load-balancing mechanism: stateless,
// no coordination, spreads load and risk across providers. A dispatch
// failure at the chosen offering fails the request; there is no failover to
// a sibling offering.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	model, err := r.catalog.GetModelBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, slug)
		}
		return nil, fmt.Errorf("resolve model: %w", err)
	}

	offerings, err := r.offerings(ctx, model.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve offerings: %w", err)
	}
	if len(offerings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, slug)
	}

	offering := offerings[rand.Intn(len(offerings))]

	// The vendor sees only the model name after the company segment.
	upstream := slug
	if _, name, ok := strings.Cut(slug, "/"); ok {
		upstream = name
	}

	return &Resolution{
		Model:         *model,
		Offering:      offering,
		UpstreamModel: upstream,
	}, nil
}

func (r *Resolver) offerings(ctx context.Context, modelID int64) ([]models.ProviderOffering, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, modelID); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	offerings, err := r.catalog.ListOfferings(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && len(offerings) > 0 {
		// Best effort; a failed write just means a catalog read next time.
		_ = r.cache.Set(ctx, modelID, offerings)
	}
	return offerings, nil
}
