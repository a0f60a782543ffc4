package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// StorageKey is the fixed slot the cart is persisted under.
const StorageKey = "helsinki-ebike-cart"

// LineItem is one named product entry in the cart.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price multiplied by quantity.
func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Quantity)
}

// StoreConfig groups Store dependencies.
type StoreConfig struct {
	Storage  Storage
	Key      string
	OnChange func([]LineItem)
	Logger   zerolog.Logger
}

// Store owns the cart state. Every mutation persists the new state before
// notifying OnChange. A Store is not safe for concurrent use.
type Store struct {
	storage  Storage
	key      string
	onChange []func([]LineItem)
	logger   zerolog.Logger
	items    []LineItem
}

// NewStore constructs an empty Store. Call Restore to load persisted state.
func NewStore(cfg StoreConfig) *Store {
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = StorageKey
	}
	s := &Store{storage: cfg.Storage, key: key, logger: cfg.Logger}
	if cfg.OnChange != nil {
		s.onChange = append(s.onChange, cfg.OnChange)
	}
	return s
}

// Subscribe registers an additional display-refresh callback.
func (s *Store) Subscribe(fn func([]LineItem)) {
	if fn != nil {
		s.onChange = append(s.onChange, fn)
	}
}

// AddItem increments the line item named name or appends it with quantity 1.
// Empty names and non-finite or negative prices are ignored.
func (s *Store) AddItem(ctx context.Context, name string, price float64) bool {
	if name == "" || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return false
	}
	if i := s.index(name); i >= 0 {
		s.items[i].Quantity++
	} else {
		s.items = append(s.items, LineItem{Name: name, Price: price, Quantity: 1})
	}
	s.commit(ctx)
	return true
}

// RemoveItem decrements the line item named name, dropping it at zero.
func (s *Store) RemoveItem(ctx context.Context, name string) bool {
	i := s.index(name)
	if i < 0 {
		return false
	}
	if s.items[i].Quantity > 1 {
		s.items[i].Quantity--
	} else {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.commit(ctx)
	return true
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.items = nil
	s.commit(ctx)
}

// Items returns a copy of the line items in first-added order. The read
// accessors treat a nil Store as an empty cart.
func (s *Store) Items() []LineItem {
	if s == nil {
		return nil
	}
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// ItemCount sums quantities across all line items.
func (s *Store) ItemCount() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// Subtotal sums price times quantity across all line items.
func (s *Store) Subtotal() float64 {
	if s == nil {
		return 0
	}
	var total float64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

// IsEmpty reports whether the cart has no line items.
func (s *Store) IsEmpty() bool {
	return s == nil || len(s.items) == 0
}

// Serialize encodes the cart as a JSON array of {name, price, quantity}.
func (s *Store) Serialize() ([]byte, error) {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// Restore replaces the in-memory state with the persisted one. Absent or
// malformed data yields an empty cart.
func (s *Store) Restore(ctx context.Context) {
	s.items = nil
	if s.storage == nil {
		return
	}
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrStorageMiss) {
			s.logger.Debug().Err(err).Str("key", s.key).Msg("cart restore failed")
		}
		return
	}
	s.items = Parse(data)
}

// Parse decodes persisted cart data, dropping invalid records.
func Parse(data []byte) []LineItem {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	items := make([]LineItem, 0, len(raw))
	seen := map[string]int{}
	for _, rec := range raw {
		name, _ := rec["name"].(string)
		if name == "" {
			continue
		}
		price, ok := toNumber(rec["price"])
		if !ok || price < 0 {
			continue
		}
		qty := 1.0
		if v, present := rec["quantity"]; present && v != nil {
			if qty, ok = toNumber(v); !ok {
				continue
			}
		}
		if qty <= 0 || qty != math.Trunc(qty) || qty > math.MaxInt32 {
			continue
		}
		if i, dup := seen[name]; dup {
			items[i].Quantity += int(qty)
			continue
		}
		seen[name] = len(items)
		items = append(items, LineItem{Name: name, Price: price, Quantity: int(qty)})
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func (s *Store) index(name string) int {
	for i, it := range s.items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) commit(ctx context.Context) {
	s.persist(ctx)
	if len(s.onChange) == 0 {
		return
	}
	snapshot := s.Items()
	for _, fn := range s.onChange {
		fn(snapshot)
	}
}

func (s *Store) persist(ctx context.Context) {
	if s.storage == nil {
		return
	}
	data, err := s.Serialize()
	if err != nil {
		s.logger.Debug().Err(err).Msg("cart serialise failed")
		return
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.logger.Debug().Err(err).Str("key", s.key).Msg("cart persist failed")
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
