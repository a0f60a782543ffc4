package cart_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/cart"
)

type failingStorage struct {
	sets int
}

func (f *failingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage disabled")
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	f.sets++
	return errors.New("quota exceeded")
}

func TestAddItemIncrementsExisting(t *testing.T) {
	ctx := context.Background()
	store := cart.NewStore(cart.StoreConfig{Storage: cart.NewMemoryStorage()})

	require.True(t, store.AddItem(ctx, "Bike", 1000))
	require.True(t, store.AddItem(ctx, "Bike", 1000))

	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, "Bike", items[0].Name)
	require.Equal(t, 2, items[0].Quantity)
	require.Equal(t, 2000.0, store.Subtotal())
	require.Equal(t, 2, store.ItemCount())
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := cart.NewStore(cart.StoreConfig{
		Storage:  cart.NewMemoryStorage(),
		OnChange: func([]cart.LineItem) { calls++ },
	})

	require.False(t, store.AddItem(ctx, "", 10))
	require.False(t, store.AddItem(ctx, "Bike", math.NaN()))
	require.False(t, store.AddItem(ctx, "Bike", math.Inf(1)))
	require.False(t, store.AddItem(ctx, "Bike", -1))
	require.True(t, store.IsEmpty())
	require.Zero(t, calls)
}

func TestRemoveItemDecrementsThenDrops(t *testing.T) {
	ctx := context.Background()
	store := cart.NewStore(cart.StoreConfig{Storage: cart.NewMemoryStorage()})
	store.AddItem(ctx, "VanMoof S5", 3690)
	store.AddItem(ctx, "Tern GSD", 5490)
	store.AddItem(ctx, "VanMoof S5", 3690)

	require.False(t, store.RemoveItem(ctx, "missing"))

	require.True(t, store.RemoveItem(ctx, "VanMoof S5"))
	require.Equal(t, []cart.LineItem{
		{Name: "VanMoof S5", Price: 3690, Quantity: 1},
		{Name: "Tern GSD", Price: 5490, Quantity: 1},
	}, store.Items())

	require.True(t, store.RemoveItem(ctx, "VanMoof S5"))
	require.Equal(t, []cart.LineItem{{Name: "Tern GSD", Price: 5490, Quantity: 1}}, store.Items())
	require.Equal(t, 1, store.ItemCount())
}

func TestMutationPersistsBeforeNotifying(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	var observed [][]byte
	store := cart.NewStore(cart.StoreConfig{Storage: storage})
	store.Subscribe(func(items []cart.LineItem) {
		data, err := storage.Get(ctx, cart.StorageKey)
		require.NoError(t, err)
		observed = append(observed, data)
		require.Len(t, cart.Parse(data), len(items))
	})

	store.AddItem(ctx, "Bike", 1000)
	store.AddItem(ctx, "Helmet", 90)
	store.RemoveItem(ctx, "Bike")
	require.Len(t, observed, 3)
	require.JSONEq(t, `[{"name":"Helmet","price":90,"quantity":1}]`, string(observed[2]))
}

func TestSequenceKeepsQuantitiesPositive(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	store := cart.NewStore(cart.StoreConfig{Storage: storage})
	ops := []struct {
		add  bool
		name string
	}{
		{true, "a"}, {true, "b"}, {false, "a"}, {false, "a"}, {true, "c"},
		{true, "c"}, {false, "b"}, {true, "a"}, {false, "zzz"}, {false, "c"},
	}
	for _, op := range ops {
		if op.add {
			store.AddItem(ctx, op.name, 5)
		} else {
			store.RemoveItem(ctx, op.name)
		}
		sum := 0
		for _, it := range store.Items() {
			require.Positive(t, it.Quantity)
			sum += it.Quantity
		}
		require.Equal(t, sum, store.ItemCount())

		data, err := storage.Get(ctx, cart.StorageKey)
		require.NoError(t, err)
		for _, it := range cart.Parse(data) {
			require.Positive(t, it.Quantity)
		}
	}
	require.Equal(t, []cart.LineItem{{Name: "c", Price: 5, Quantity: 1}, {Name: "a", Price: 5, Quantity: 1}}, store.Items())
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	store := cart.NewStore(cart.StoreConfig{Storage: storage})
	store.AddItem(ctx, "Tenways CGO One", 2899)
	store.AddItem(ctx, "Gazelle Ultimate C380 HMB", 3490)
	store.AddItem(ctx, "Tenways CGO One", 2899)

	first, err := store.Serialize()
	require.NoError(t, err)

	restored := cart.NewStore(cart.StoreConfig{Storage: storage})
	restored.Restore(ctx)
	second, err := restored.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
	require.Equal(t, store.Items(), restored.Items())
}

func TestRestoreDiscardsMalformedData(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":  "{oops",
		"object":    `{"name":"Bike"}`,
		"null":      `null`,
		"all bogus": `[{"name":""},{"name":"x","price":-1},{"name":"y","price":"abc"},{"name":"z","price":1,"quantity":0}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			storage := cart.NewMemoryStorage()
			require.NoError(t, storage.Set(ctx, cart.StorageKey, []byte(payload)))
			store := cart.NewStore(cart.StoreConfig{Storage: storage})
			store.Restore(ctx)
			require.True(t, store.IsEmpty())
			data, err := store.Serialize()
			require.NoError(t, err)
			require.Equal(t, "[]", string(data))
		})
	}
}

func TestParseKeepsValidRecords(t *testing.T) {
	items := cart.Parse([]byte(`[{"name":"Bike","price":"1000"},{"name":"Lock","price":45,"quantity":2},{"name":"","price":1}]`))
	require.Equal(t, []cart.LineItem{
		{Name: "Bike", Price: 1000, Quantity: 1},
		{Name: "Lock", Price: 45, Quantity: 2},
	}, items)
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{}
	refreshed := 0
	store := cart.NewStore(cart.StoreConfig{Storage: storage, OnChange: func([]cart.LineItem) { refreshed++ }})
	store.Restore(ctx)
	require.True(t, store.IsEmpty())

	require.True(t, store.AddItem(ctx, "Bike", 1000))
	require.True(t, store.AddItem(ctx, "Bike", 1000))
	require.Equal(t, 2, store.ItemCount())
	require.Equal(t, 2, storage.sets)
	require.Equal(t, 2, refreshed)
}

func TestRedisStorage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	storage := cart.RedisStorage{Client: client, Prefix: "cart:session-1:", TTL: time.Hour}

	_, err = storage.Get(ctx, cart.StorageKey)
	require.ErrorIs(t, err, cart.ErrStorageMiss)

	store := cart.NewStore(cart.StoreConfig{Storage: storage})
	store.AddItem(ctx, "VanMoof S5", 3690)

	raw, err := mr.Get("cart:session-1:" + cart.StorageKey)
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"VanMoof S5","price":3690,"quantity":1}]`, raw)
	require.Equal(t, time.Hour, mr.TTL("cart:session-1:"+cart.StorageKey))

	restored := cart.NewStore(cart.StoreConfig{Storage: storage})
	restored.Restore(ctx)
	require.Equal(t, 3690.0, restored.Subtotal())
}

func TestNilStoreReadsAsEmpty(t *testing.T) {
	var store *cart.Store
	require.Nil(t, store.Items())
	require.Zero(t, store.ItemCount())
	require.Zero(t, store.Subtotal())
	require.True(t, store.IsEmpty())
}
