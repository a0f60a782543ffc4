package storefront

import (
	"github.com/hrk/storefront-api/internal/cart"
	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/view"
)

// CartSnapshot is the rendered cart.
type CartSnapshot struct {
	Items         []cart.LineItem `json:"items"`
	ItemCount     int             `json:"itemCount"`
	Subtotal      float64         `json:"subtotal"`
	SubtotalLabel string          `json:"subtotalLabel"`
	Empty         bool            `json:"empty"`
}

// Markup is the state of every node a session drives.
type Markup struct {
	Root     view.NodeState   `json:"root"`
	Tabs     []view.NodeState `json:"tabs"`
	Panels   []view.NodeState `json:"panels"`
	Counters []view.NodeState `json:"counters"`
	Total    view.NodeState   `json:"total"`
	Empty    view.NodeState   `json:"empty"`
}

// Snapshot is the full client-facing state of a session.
type Snapshot struct {
	SessionID     string           `json:"sessionId"`
	View          string           `json:"view"`
	Views         []string         `json:"views"`
	Category      string           `json:"category"`
	ActiveProduct string           `json:"activeProduct,omitempty"`
	Cart          CartSnapshot     `json:"cart"`
	Draft         checkout.Form    `json:"draft"`
	Checkout      *checkout.Result `json:"checkout,omitempty"`
	Markup        Markup           `json:"markup"`
}

// Snapshot renders the session.
func (s *Session) Snapshot() Snapshot {
	items := s.cart.Items()
	subtotal := s.cart.Subtotal()
	return Snapshot{
		SessionID:     s.ID,
		View:          s.views.View(),
		Views:         s.views.Views(),
		Category:      s.state.Category,
		ActiveProduct: s.state.ActiveProduct,
		Cart: CartSnapshot{
			Items:         items,
			ItemCount:     s.cart.ItemCount(),
			Subtotal:      subtotal,
			SubtotalLabel: checkout.FormatEuro(subtotal),
			Empty:         len(items) == 0,
		},
		Draft:    s.state.Draft,
		Checkout: s.state.Result,
		Markup: Markup{
			Root:     s.markup.root.State(),
			Tabs:     states(s.markup.tabs),
			Panels:   states(s.markup.panels),
			Counters: states(s.markup.counters),
			Total:    s.markup.total.State(),
			Empty:    s.markup.empty.State(),
		},
	}
}

func states(nodes []*view.Node) []view.NodeState {
	out := make([]view.NodeState, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.State())
	}
	return out
}
