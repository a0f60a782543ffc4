package storefront

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/cart"
	"github.com/hrk/storefront-api/internal/catalog"
	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/view"
)

// Dataset keys written by the cart display observers.
const (
	CartCountKey = "cart-count"
	CartTotalKey = "cart-total"
)

// state is the persisted part of a session besides the cart itself.
type state struct {
	View          string           `json:"view"`
	Category      string           `json:"category"`
	ActiveProduct string           `json:"activeProduct"`
	Draft         checkout.Form    `json:"draft"`
	Result        *checkout.Result `json:"result,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// markup holds the nodes a session drives. Counters mirror the item count,
// total mirrors the formatted subtotal and empty is shown only for an empty cart.
type markup struct {
	root     *view.Node
	tabs     []*view.Node
	panels   []*view.Node
	counters []*view.Node
	total    *view.Node
	empty    *view.Node
}

func newMarkup() markup {
	return markup{
		root: view.NewNode("storefront", nil),
		tabs: []*view.Node{
			view.NewNode("storefront-tab-mallisto", map[string]string{view.TabKey: view.ViewCatalog}),
			view.NewNode("storefront-tab-checkout", map[string]string{view.TabKey: view.ViewCheckout}),
		},
		panels: []*view.Node{
			view.NewNode("storefront-mallisto", map[string]string{view.ViewKey: view.ViewCatalog}),
			view.NewNode("storefront-checkout", map[string]string{view.ViewKey: view.ViewCheckout}),
		},
		counters: []*view.Node{
			view.NewNode("nav-cart-count", map[string]string{CartCountKey: "0"}),
			view.NewNode("store-cart-count", map[string]string{CartCountKey: "0"}),
		},
		total: view.NewNode("cart-total", map[string]string{CartTotalKey: checkout.FormatEuro(0)}),
		empty: view.NewNode("cart-empty", nil),
	}
}

func elements(nodes []*view.Node) []view.Element {
	out := make([]view.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

// Session is one visitor's storefront: the cart, the view controller and the
// checkout draft, wired so that cart changes refresh the displays and an
// accepted checkout switches to the checkout view.
type Session struct {
	ID string

	state     state
	markup    markup
	cart      *cart.Store
	views     *view.Controller
	validator *checkout.Validator
	logger    zerolog.Logger
}

func newSession(ctx context.Context, id string, st state, storage cart.Storage, validator *checkout.Validator, logger zerolog.Logger) (*Session, error) {
	s := &Session{
		ID:        id,
		state:     st,
		markup:    newMarkup(),
		validator: validator,
		logger:    logger,
	}
	s.cart = cart.NewStore(cart.StoreConfig{
		Storage:  storage,
		Key:      cartKey(id),
		OnChange: s.refreshCounters,
		Logger:   logger,
	})
	s.cart.Subscribe(s.refreshTotals)

	views, err := view.New(view.Config{
		Root:         s.markup.root,
		Tabs:         elements(s.markup.tabs),
		Views:        elements(s.markup.panels),
		DefaultView:  st.View,
		OnViewChange: func(v string) { s.state.View = v },
	})
	if err != nil {
		return nil, err
	}
	s.views = views
	s.views.Init()

	s.cart.Restore(ctx)
	items := s.cart.Items()
	s.refreshCounters(items)
	s.refreshTotals(items)
	return s, nil
}

func (s *Session) refreshCounters(items []cart.LineItem) {
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	for _, n := range s.markup.counters {
		n.SetData(CartCountKey, strconv.Itoa(count))
	}
}

func (s *Session) refreshTotals(items []cart.LineItem) {
	var subtotal float64
	for _, it := range items {
		subtotal += it.Subtotal()
	}
	s.markup.total.SetData(CartTotalKey, checkout.FormatEuro(subtotal))
	s.markup.empty.SetHidden(len(items) > 0)
}

// View returns the active view.
func (s *Session) View() string {
	return s.views.View()
}

// SetView activates name; unknown names leave the view unchanged.
func (s *Session) SetView(name string) string {
	before := s.views.View()
	after := s.views.SetView(name)
	if after != before {
		obs.ObserveViewSwitch(after)
	}
	return after
}

// AddItem adds one unit of name at price.
func (s *Session) AddItem(ctx context.Context, name string, price float64) bool {
	ok := s.cart.AddItem(ctx, name, price)
	obs.ObserveCartMutation("add", ok)
	return ok
}

// AddProduct adds one unit of p and makes it the highlighted product.
func (s *Session) AddProduct(ctx context.Context, p catalog.Product) bool {
	if !s.AddItem(ctx, p.Name, p.Price) {
		return false
	}
	s.state.ActiveProduct = p.ID
	return true
}

// RemoveItem removes one unit of name.
func (s *Session) RemoveItem(ctx context.Context, name string) bool {
	ok := s.cart.RemoveItem(ctx, name)
	obs.ObserveCartMutation("remove", ok)
	return ok
}

// ClearCart empties the cart.
func (s *Session) ClearCart(ctx context.Context) {
	s.cart.Clear(ctx)
	obs.ObserveCartMutation("clear", true)
}

// SelectCategory records the catalog filter and the product highlighted under it.
func (s *Session) SelectCategory(category, productID string) {
	s.state.Category = catalog.NormalizeCategory(category)
	s.state.ActiveProduct = productID
}

// SaveDraft stores the in-progress checkout form.
func (s *Session) SaveDraft(form checkout.Form) {
	s.state.Draft = form
}

// Submit validates form against the cart. An accepted submission switches
// to the checkout view and clears the draft; a rejected one keeps the draft
// so the visitor can correct it.
func (s *Session) Submit(form checkout.Form) checkout.Result {
	before := s.views.View()
	res := s.validator.Submit(form, s.cart, s.views)
	if res.View != "" && res.View != before {
		obs.ObserveViewSwitch(res.View)
	}
	if res.ClearForm {
		s.state.Draft = checkout.Form{}
	} else {
		s.state.Draft = form
	}
	obs.ObserveCheckout(res.OK(), len(res.Errors))
	s.state.Result = &res
	return res
}

// Cart exposes the session cart.
func (s *Session) Cart() *cart.Store {
	return s.cart
}
