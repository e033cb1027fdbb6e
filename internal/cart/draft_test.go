package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/devicestore"
)

var (
	shoe = catalog.Product{ID: "p-shoe", Name: "Runner", Price: 100, Sizes: []string{"M", "L"}}
	hat  = catalog.Product{ID: "p-hat", Name: "Bucket hat", Price: 50}
)

func TestDraftCart_ReloadReproducesLines(t *testing.T) {
	ctx := context.Background()
	storage := devicestore.NewMemoryStorage()

	c, err := cart.LoadDraftCart(ctx, storage)
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, shoe, 1, "M", ""))
	require.NoError(t, c.Add(ctx, shoe, 2, "L", ""))
	require.NoError(t, c.Add(ctx, hat, 1, "", "blue"))
	require.NoError(t, c.Add(ctx, shoe, 1, "M", ""))
	require.NoError(t, c.UpdateQuantity(ctx, cart.Key{ProductID: "p-hat", Color: "blue"}, 4))
	require.NoError(t, c.Remove(ctx, cart.Key{ProductID: "p-shoe", Size: "L"}))

	reloaded, err := cart.LoadDraftCart(ctx, storage)
	require.NoError(t, err)

	if diff := cmp.Diff(c.Lines(), reloaded.Lines()); diff != "" {
		t.Fatalf("reloaded lines differ (-before +after):\n%s", diff)
	}

	lines := reloaded.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 4, lines[1].Quantity)
	assert.Equal(t, 3, cart.ItemCount(lines))
}

func TestDraftCart_UpdateQuantityBelowOneRemoves(t *testing.T) {
	for _, q := range []int{0, -1} {
		ctx := context.Background()
		viaUpdate, _ := cart.LoadDraftCart(ctx, devicestore.NewMemoryStorage())
		viaRemove, _ := cart.LoadDraftCart(ctx, devicestore.NewMemoryStorage())

		for _, c := range []*cart.DraftCart{viaUpdate, viaRemove} {
			require.NoError(t, c.Add(ctx, shoe, 2, "M", ""))
			require.NoError(t, c.Add(ctx, hat, 1, "", ""))
		}

		key := cart.Key{ProductID: shoe.ID, Size: "M"}
		require.NoError(t, viaUpdate.UpdateQuantity(ctx, key, q))
		require.NoError(t, viaRemove.Remove(ctx, key))

		assert.Equal(t, viaRemove.Lines(), viaUpdate.Lines())
		for _, l := range viaUpdate.Lines() {
			assert.GreaterOrEqual(t, l.Quantity, 1)
		}
	}
}

func TestDraftCart_AddRejectsNonPositive(t *testing.T) {
	c, _ := cart.LoadDraftCart(context.Background(), devicestore.NewMemoryStorage())
	assert.ErrorIs(t, c.Add(context.Background(), shoe, 0, "", ""), cart.ErrInvalidQuantity)
	assert.Empty(t, c.Lines())
}

func TestDraftCart_Clear(t *testing.T) {
	ctx := context.Background()
	storage := devicestore.NewMemoryStorage()
	c, _ := cart.LoadDraftCart(ctx, storage)
	require.NoError(t, c.Add(ctx, shoe, 1, "", ""))

	require.NoError(t, c.Clear(ctx))
	assert.Empty(t, c.Lines())

	raw, err := storage.Get(ctx, devicestore.CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestLoadDraftCart_SnapshotFormat(t *testing.T) {
	ctx := context.Background()
	storage := devicestore.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, devicestore.CartKey, []byte(
		`[{"product":{"id":"p1","name":"Tee","price":25,"image":"tee.png","category":"Tops","brand":"","rating":0,"reviewCount":0,"inStock":true},"quantity":3,"selectedSize":"S"}]`,
	)))

	c, err := cart.LoadDraftCart(ctx, storage)
	require.NoError(t, err)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].Product.ID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "S", lines[0].SelectedSize)
	assert.Equal(t, "", lines[0].SelectedColor)
}

func TestLoadDraftCart_CorruptedSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	storage := devicestore.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, devicestore.CartKey, []byte(`{broken`)))

	c, err := cart.LoadDraftCart(ctx, storage)
	require.NoError(t, err)
	assert.Empty(t, c.Lines())
}

type failingStorage struct {
	devicestore.Storage
}

func (failingStorage) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestDraftCart_PersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	c, err := cart.LoadDraftCart(ctx, failingStorage{devicestore.NewMemoryStorage()})
	require.NoError(t, err)

	err = c.Add(ctx, shoe, 1, "", "")
	require.Error(t, err)
	assert.Empty(t, c.Lines(), "memory must not run ahead of storage")
}
