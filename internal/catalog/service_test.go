package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListProducts(ctx context.Context, filter catalog.Filter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]*catalog.Product
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]*catalog.Product)}
}

func (c *memoryCache) Get(_ context.Context, id string) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return nil, catalog.ErrCacheMiss
	}
	return p, nil
}

func (c *memoryCache) Set(_ context.Context, p *catalog.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = p
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

func TestService_GetProduct_ReadThrough(t *testing.T) {
	repo := new(MockRepository)
	cache := newMemoryCache()
	svc := catalog.NewService(repo, cache)

	product := &catalog.Product{ID: "p1", Name: "Runner", Price: 100}
	repo.On("GetProduct", mock.Anything, "p1").Return(product, nil).Once()

	got, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, product, got)

	got, err = svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, product, got)

	assert.Equal(t, 1, cache.sets)
	repo.AssertExpectations(t)
}

func TestService_InvalidateProduct(t *testing.T) {
	repo := new(MockRepository)
	cache := newMemoryCache()
	svc := catalog.NewService(repo, cache)
	ctx := context.Background()

	repo.On("GetProduct", mock.Anything, "p1").Return(&catalog.Product{ID: "p1", Price: 100}, nil).Once()
	repo.On("GetProduct", mock.Anything, "p1").Return(&catalog.Product{ID: "p1", Price: 80}, nil).Once()

	got, err := svc.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price)

	require.NoError(t, svc.InvalidateProduct(ctx, "p1"))

	got, err = svc.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Price)

	assert.NoError(t, catalog.NewService(repo, nil).InvalidateProduct(ctx, "p1"))
	repo.AssertExpectations(t)
}

func TestService_GetProduct_NoCache(t *testing.T) {
	repo := new(MockRepository)
	svc := catalog.NewService(repo, nil)

	repo.On("GetProduct", mock.Anything, "p1").Return(&catalog.Product{ID: "p1"}, nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := svc.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
	}
	repo.AssertExpectations(t)
}

func TestService_GetProduct_Errors(t *testing.T) {
	tests := []struct {
		name      string
		repoErr   error
		wantErrIs error
	}{
		{name: "not_found", repoErr: catalog.ErrProductNotFound, wantErrIs: catalog.ErrProductNotFound},
		{name: "db_failure", repoErr: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := catalog.NewService(repo, newMemoryCache())
			repo.On("GetProduct", mock.Anything, "p1").Return(nil, tt.repoErr).Once()

			_, err := svc.GetProduct(context.Background(), "p1")
			require.Error(t, err)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.ErrorIs(t, err, tt.repoErr)
			}
		})
	}
}

func TestService_ListProducts(t *testing.T) {
	repo := new(MockRepository)
	svc := catalog.NewService(repo, nil)
	filter := catalog.Filter{Category: "Shoes", Limit: 3}

	repo.On("ListProducts", mock.Anything, filter).Return([]catalog.Product{{ID: "p1"}}, nil).Once()

	products, err := svc.ListProducts(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	repo.On("ListCategories", mock.Anything).Return(nil, errors.New("down")).Once()
	_, err = svc.ListCategories(context.Background())
	assert.Error(t, err)
	repo.AssertExpectations(t)
}
