package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type Service interface {
	ListProducts(ctx context.Context, filter Filter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// InvalidateProduct drops the cached copy, so the next GetProduct reads the repository.
	InvalidateProduct(ctx context.Context, id string) error
}

type service struct {
	repo  Repository
	cache Cache
	group singleflight.Group
}

// NewService: cache может быть nil, тогда GetProduct ходит в репозиторий напрямую.
func NewService(repo Repository, cache Cache) Service {
	return &service{repo: repo, cache: cache}
}

func (s *service) ListProducts(ctx context.Context, filter Filter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("category", filter.Category).Str("tag", filter.Tag).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if s.cache != nil {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("product_id", id).Msg("service: product cache read failed")
		}
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		p, err := s.repo.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, p); err != nil {
				log.Warn().Err(err).Str("product_id", id).Msg("service: product cache write failed")
			}
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product: %w", err)
	}

	return v.(*Product), nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) InvalidateProduct(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("service: failed to drop cached product: %w", err)
	}
	return nil
}
